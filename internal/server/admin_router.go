package server

import (
	"github.com/kataras/iris/v12"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/order"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/infra/mq"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/infra/payment"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/infra/redis"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/middleware"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/repository/mysql"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/service"
)

// productRequest 后台商品创建/更新请求体
type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Status      int    `json:"status"`
}

func (r productRequest) applyTo(p *product.Product) {
	p.Name = r.Name
	p.Description = r.Description
	p.Price = r.Price
	p.Status = r.Status
}

// optionListRequest 整体替换颜色/附加选项列表的请求体
type optionListRequest struct {
	Variants []struct {
		ColorName     string `json:"colorName"`
		StockQuantity int64  `json:"stockQuantity"`
	} `json:"variants"`
	AdditionalOptions []struct {
		Name            string `json:"name"`
		AdditionalPrice int64  `json:"additionalPrice"`
		StockQuantity   int64  `json:"stockQuantity"`
	} `json:"additionalOptions"`
}

// stockAdjustRequest 库存调整请求体。
// 每行 colorName / additional 二选一，stockQuantity 是调整量。
type stockAdjustRequest struct {
	Items []struct {
		ProductID     int64  `json:"productId"`
		ColorName     string `json:"colorName"`
		Additional    string `json:"additional"`
		StockQuantity int64  `json:"stockQuantity"`
	} `json:"items"`
	Action string `json:"action"` // reduce | restore
}

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 Web 服务分离。
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	mileageRepo := mysql.NewMileageRepository(db)
	couponRepo := mysql.NewCouponRepository(db)

	stockSvc := service.NewStockService(productRepo, redisClient)
	productSvc := service.NewProductService(productRepo, stockSvc)
	mileageSvc := service.NewMileageService(mileageRepo)
	couponSvc := service.NewCouponService(couponRepo)
	orderSvc := service.NewOrderService(
		orderRepo, productRepo, stockSvc, mileageSvc, couponSvc,
		payment.New(&cfg.Payment),
		service.NewMQNotifier(mqConn),
	)

	api := app.Party("/api")

	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 商品管理 ----------

	api.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListAll(ctx.Request().Context())
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Post("/products", func(ctx iris.Context) {
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p := &product.Product{}
		req.applyTo(p)
		if err := productSvc.Create(ctx.Request().Context(), p); err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Put("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		req.applyTo(p)
		if err := productSvc.Update(ctx.Request().Context(), p); err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 整体替换颜色/附加选项（目录编辑），总库存同事务重算
	api.Put("/products/{id:int64}/options", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req optionListRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		variants := make([]product.Variant, 0, len(req.Variants))
		for _, v := range req.Variants {
			variants = append(variants, product.Variant{
				ColorName:     v.ColorName,
				StockQuantity: v.StockQuantity,
			})
		}
		options := make([]product.AdditionalOption, 0, len(req.AdditionalOptions))
		for _, o := range req.AdditionalOptions {
			options = append(options, product.AdditionalOption{
				Name:            o.Name,
				AdditionalPrice: o.AdditionalPrice,
				StockQuantity:   o.StockQuantity,
			})
		}
		if err := productSvc.ReplaceOptions(ctx.Request().Context(), id, variants, options); err != nil {
			writeError(ctx, err)
			return
		}
		p, err := productSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Delete("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := productSvc.Delete(ctx.Request().Context(), id); err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 库存调整（唯一入口） ----------

	api.Put("/products/stock", middleware.StockRateLimit(), func(ctx iris.Context) {
		var req stockAdjustRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		items := make([]service.StockItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, service.StockItem{
				ProductID: it.ProductID,
				Selector: product.Selector{
					ColorName:  it.ColorName,
					Additional: it.Additional,
				},
				Quantity: it.StockQuantity,
			})
		}
		result, err := stockSvc.AdjustStock(ctx.Request().Context(), items, service.Direction(req.Action))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{
			"code":           0,
			"success":        true,
			"action":         result.Action,
			"itemsProcessed": len(result.Updates),
			"updates":        result.Updates,
		})
	})

	// ---------- 订单管理 ----------

	api.Get("/orders", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 20)
		list, err := orderSvc.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/orders/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := orderSvc.Get(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 履约流转：ready / shipped（带运单号） / confirm / cancel
	api.Post("/orders/{id:int64}/transition", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req struct {
			Status         string `json:"status"`
			TrackingNumber string `json:"trackingNumber"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		o, err := orderSvc.Transition(ctx.Request().Context(), id, order.Status(req.Status), req.TrackingNumber)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	api.Post("/orders/{id:int64}/cancel", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req struct {
			Reason string `json:"reason"`
		}
		_ = ctx.ReadJSON(&req)
		if req.Reason == "" {
			req.Reason = "后台取消"
		}
		o, err := orderSvc.Cancel(ctx.Request().Context(), id, req.Reason)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// ---------- 优惠券管理 ----------

	api.Get("/coupons", func(ctx iris.Context) {
		list, err := couponSvc.ListCoupons(ctx.Request().Context())
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/coupons", func(ctx iris.Context) {
		var req struct {
			Name           string `json:"name"`
			DiscountAmount int64  `json:"discountAmount"`
			ExpiresAt      string `json:"expiresAt"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		c, err := buildCoupon(req.Name, req.DiscountAmount, req.ExpiresAt)
		if err != nil {
			writeError(ctx, err)
			return
		}
		if err := couponSvc.CreateCoupon(ctx.Request().Context(), c); err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": c})
	})

	api.Post("/coupons/{id:int64}/assign", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req struct {
			UserID int64 `json:"userId"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := couponSvc.Assign(ctx.Request().Context(), req.UserID, id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": u})
	})

	// ---------- 监控 ----------

	api.Get("/monitor", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().Snapshot()})
	})
}
