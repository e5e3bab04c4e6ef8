package server

import (
	"time"

	"github.com/kataras/iris/v12"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/auth"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/infra/mq"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/infra/payment"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/infra/redis"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/middleware"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/repository/mysql"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/service"
)

// checkoutItemRequest 结算请求的一行，colorName / additional 二选一
type checkoutItemRequest struct {
	ProductID  int64  `json:"productId"`
	ColorName  string `json:"colorName"`
	Additional string `json:"additional"`
	Quantity   int64  `json:"quantity"`
}

func (r checkoutItemRequest) toItem() service.CheckoutItem {
	return service.CheckoutItem{
		ProductID: r.ProductID,
		Selector: product.Selector{
			ColorName:  r.ColorName,
			Additional: r.Additional,
		},
		Quantity: r.Quantity,
	}
}

// authHandler 鉴权中间件：先查 Redis 缓存的解析结果，未命中再解析 JWT
func authHandler(cfg *config.Config, cache *auth.TokenCache) iris.Handler {
	return func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}
		reqCtx := ctx.Request().Context()

		claims, hit, err := cache.Get(reqCtx, token)
		if err != nil || !hit {
			claims, err = auth.ParseToken(&cfg.JWT, token)
			if err != nil {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
				return
			}
			_ = cache.Set(reqCtx, token, claims)
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Next()
	}
}

func currentUserID(ctx iris.Context) int64 {
	v, _ := ctx.Values().GetInt64("user_id")
	return v
}

// RegisterRoutes 注册前台商城的 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	mileageRepo := mysql.NewMileageRepository(db)
	couponRepo := mysql.NewCouponRepository(db)

	stockSvc := service.NewStockService(productRepo, redisClient)
	productSvc := service.NewProductService(productRepo, stockSvc)
	mileageSvc := service.NewMileageService(mileageRepo)
	couponSvc := service.NewCouponService(couponRepo)
	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	orderSvc := service.NewOrderService(
		orderRepo, productRepo, stockSvc, mileageSvc, couponSvc,
		payment.New(&cfg.Payment),
		service.NewMQNotifier(mqConn),
	)

	ring := auth.NewHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring,
		time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// 用户注册/登录
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Email    string `json:"email"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Username, req.Password, req.Email)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"id": u.ID, "username": u.Username}})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 需要登录的接口
	authAPI := api.Party("/", authHandler(cfg, tokenCache))

	// 商品列表：AggregateQuantity 是写路径维护的冗余值，这里直接读
	authAPI.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListOnline(ctx.Request().Context())
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 商品详情（含颜色与附加选项）
	authAPI.Get("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 结算下单
	authAPI.Post("/checkout", middleware.CheckoutRateLimit(), func(ctx iris.Context) {
		var req struct {
			Items         []checkoutItemRequest `json:"items"`
			CouponUsageID int64                 `json:"couponUsageId"`
			UseMileage    int64                 `json:"useMileage"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		items := make([]service.CheckoutItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, it.toItem())
		}
		o, err := orderSvc.Checkout(ctx.Request().Context(), currentUserID(ctx), service.CheckoutRequest{
			Items:         items,
			CouponUsageID: req.CouponUsageID,
			UseMileage:    req.UseMileage,
		})
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 我的订单
	authAPI.Get("/orders", func(ctx iris.Context) {
		list, err := orderSvc.ListByUser(ctx.Request().Context(), currentUserID(ctx))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Get("/orders/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := orderSvc.Get(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		if o.UserID != currentUserID(ctx) {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "无权查看该订单"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 取消订单（退款成功才会触发库存/积分/券的补偿）
	authAPI.Post("/orders/{id:int64}/cancel", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := orderSvc.Get(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		if o.UserID != currentUserID(ctx) {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "无权操作该订单"})
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		_ = ctx.ReadJSON(&req)
		if req.Reason == "" {
			req.Reason = "用户取消"
		}
		out, err := orderSvc.Cancel(ctx.Request().Context(), id, req.Reason)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": out})
	})

	// 确认收货：返积分在这一步落账
	authAPI.Post("/orders/{id:int64}/confirm", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := orderSvc.Get(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		if o.UserID != currentUserID(ctx) {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "无权操作该订单"})
			return
		}
		out, err := orderSvc.Transition(ctx.Request().Context(), id, "confirm", "")
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": out})
	})

	// 积分：余额现算 + 流水
	authAPI.Get("/mileage", func(ctx iris.Context) {
		userID := currentUserID(ctx)
		balance, err := mileageSvc.Balance(ctx.Request().Context(), userID)
		if err != nil {
			writeError(ctx, err)
			return
		}
		entries, err := mileageSvc.Entries(ctx.Request().Context(), userID)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"balance": balance,
			"entries": entries,
		}})
	})

	// 我的券包
	authAPI.Get("/coupons", func(ctx iris.Context) {
		list, err := couponSvc.ListForUser(ctx.Request().Context(), currentUserID(ctx))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 个人信息
	authAPI.Get("/profile", func(ctx iris.Context) {
		u, err := userSvc.GetProfile(ctx.Request().Context(), currentUserID(ctx))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
			"address":  u.Address,
		}})
	})

	authAPI.Put("/profile/address", func(ctx iris.Context) {
		var req struct {
			Address string `json:"address"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := userSvc.UpdateAddress(ctx.Request().Context(), currentUserID(ctx), req.Address); err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})
}
