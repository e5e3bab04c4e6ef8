package service

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/order"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
)

// trackingPattern 运单号格式：8~32 位字母数字连字符
var trackingPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,32}$`)

// mileageEarnDivisor 确认收货后按实付 1% 返积分
const mileageEarnDivisor = 100

// CheckoutItem 结算行
type CheckoutItem struct {
	ProductID int64
	Selector  product.Selector
	Quantity  int64
}

// CheckoutRequest 结算请求
type CheckoutRequest struct {
	Items         []CheckoutItem
	CouponUsageID int64 // 0 表示不用券
	UseMileage    int64 // 抵扣积分，0 表示不用
}

// OrderService 订单履约状态机。
// 状态流转：pending -> ready -> shipped -> confirm，任一非终态可 -> cancel。
// 每次流转触发的补偿动作（库存回补、积分冲正、退券）都在这里编排，
// 顺序是硬约束：退款成功之前绝不执行任何补偿。
type OrderService struct {
	orders   order.Repository
	products product.Repository
	stock    *StockService
	mileage  *MileageService
	coupons  *CouponService
	payment  PaymentGateway
	notify   Notifier
}

// NewOrderService 创建订单服务
func NewOrderService(
	orders order.Repository,
	products product.Repository,
	stock *StockService,
	mileage *MileageService,
	coupons *CouponService,
	payment PaymentGateway,
	notify Notifier,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		stock:    stock,
		mileage:  mileage,
		coupons:  coupons,
		payment:  payment,
		notify:   notify,
	}
}

// Checkout 下单：授权扣款 -> 扣库存 -> 建单 -> 积分抵扣 -> 核销券。
// 任何一步失败都会把前面已生效的动作反向补偿掉，调用方看不到半个订单。
// 返积分此时只记在订单上（MileageEarn），确认收货才落账本。
func (s *OrderService) Checkout(ctx context.Context, userID int64, req CheckoutRequest) (*order.Order, error) {
	stockItems := make([]StockItem, 0, len(req.Items))
	for _, it := range req.Items {
		stockItems = append(stockItems, StockItem{
			ProductID: it.ProductID,
			Selector:  it.Selector,
			Quantity:  it.Quantity,
		})
	}
	if err := validateItems(stockItems, DirectionReduce); err != nil {
		return nil, err
	}
	if req.UseMileage < 0 {
		return nil, validationErrorf("抵扣积分不能为负数")
	}

	// 1) 计价（只读，不产生写入）
	orderItems, subtotal, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	var discount int64
	if req.CouponUsageID != 0 {
		discount, err = s.coupons.Peek(ctx, userID, req.CouponUsageID)
		if err != nil {
			return nil, err
		}
	}

	payable := subtotal - discount - req.UseMileage
	if payable < 0 {
		return nil, validationErrorf("抵扣金额超过应付金额")
	}
	if req.UseMileage > 0 {
		balance, err := s.mileage.Balance(ctx, userID)
		if err != nil {
			return nil, err
		}
		if balance < req.UseMileage {
			return nil, ErrInsufficientMileage
		}
	}

	// 2) 支付授权，失败则什么都没发生
	reference, err := s.payment.Authorize(ctx, userID, payable)
	if err != nil {
		return nil, fmt.Errorf("支付授权失败: %w", err)
	}

	// 3) 扣库存（协议内部已处理前缀补偿）
	if _, err := s.stock.AdjustStock(ctx, stockItems, DirectionReduce); err != nil {
		s.refundOnAbort(ctx, reference, "下单扣库存失败")
		return nil, err
	}

	// 4) 建单
	o := &order.Order{
		UserID:           userID,
		Status:           order.StatusPending,
		PaymentReference: reference,
		TotalPrice:       payable,
		MileageUsed:      req.UseMileage,
		MileageEarn:      payable / mileageEarnDivisor,
		CouponUsageID:    req.CouponUsageID,
		Items:            orderItems,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		s.stock.compensate(ctx, stockItems, DirectionReduce)
		s.refundOnAbort(ctx, reference, "订单落库失败")
		return nil, err
	}

	// 5) 积分抵扣流水
	if req.UseMileage > 0 {
		if err := s.mileage.Spend(ctx, userID, req.UseMileage, o.ID, fmt.Sprintf("订单 #%d 抵扣", o.ID)); err != nil {
			s.abortCheckout(ctx, o, stockItems, reference, false)
			return nil, err
		}
	}

	// 6) 核销券
	if req.CouponUsageID != 0 {
		if err := s.coupons.Redeem(ctx, userID, req.CouponUsageID, o.ID); err != nil {
			s.abortCheckout(ctx, o, stockItems, reference, req.UseMileage > 0)
			return nil, err
		}
	}

	if s.notify != nil {
		s.notify.OrderEvent(ctx, NotifyOrderCreated, o.ID, userID)
	}
	return o, nil
}

// Transition 履约流转：ready / shipped / confirm。
// cancel 有独立入口 Cancel（要先过退款协作方）。
func (s *OrderService) Transition(ctx context.Context, orderID int64, target order.Status, tracking string) (*order.Order, error) {
	if !target.Valid() {
		return nil, validationErrorf("未知的目标状态 %q", target)
	}
	if target == order.StatusCancel {
		return s.Cancel(ctx, orderID, "后台取消")
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanTransition(o.Status, target) {
		return nil, validationErrorf("不允许从 %s 流转到 %s", o.Status, target)
	}
	if target == order.StatusShipped {
		if !trackingPattern.MatchString(tracking) {
			return nil, validationErrorf("运单号格式不正确")
		}
	} else {
		tracking = ""
	}

	if err := s.orders.UpdateStatus(ctx, o.ID, o.Status, target, tracking); err != nil {
		return nil, err
	}

	// 确认收货：把挂在订单上的返积分落进账本
	if target == order.StatusConfirm && o.MileageEarn > 0 {
		if err := s.mileage.Earn(ctx, o.UserID, o.MileageEarn, o.ID, fmt.Sprintf("订单 #%d 确认收货返积分", o.ID)); err != nil {
			// 状态已是 confirm，积分未落账，只能人工补
			GetMonitor().RecordCompensationInconsistency()
			_ = s.orders.MarkNeedsReconcile(ctx, o.ID)
			cerr := &CompensationInconsistencyError{OrderID: o.ID, Stage: "返积分落账", Err: err}
			log.Printf("[SEVERE] %v", cerr)
			return nil, cerr
		}
	}

	if s.notify != nil {
		switch target {
		case order.StatusShipped:
			s.notify.OrderEvent(ctx, NotifyOrderShipped, o.ID, o.UserID)
		case order.StatusConfirm:
			s.notify.OrderEvent(ctx, NotifyOrderConfirmed, o.ID, o.UserID)
		}
	}
	return s.orders.GetByID(ctx, orderID)
}

// Cancel 取消/退款。补偿动作以退款成功为前置条件：
// 协作方退款失败时直接硬停，库存、积分、券全都保持原样。
// 退款成功后库存回补若再失败，订单打上对账标记并停止，不自动重试。
func (s *OrderService) Cancel(ctx context.Context, orderID int64, reason string) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, validationErrorf("订单已是终态 %s，不能取消", o.Status)
	}

	// 1) 先退款，失败硬停，不做任何补偿
	if err := s.payment.Refund(ctx, o.PaymentReference, reason); err != nil {
		GetMonitor().RecordRefundFailure()
		return nil, fmt.Errorf("退款失败，取消中止: %w", err)
	}

	// 2) 条件流转抢占 cancel，并发的重复取消在这里只会有一次命中
	if err := s.orders.UpdateStatus(ctx, o.ID, o.Status, order.StatusCancel, ""); err != nil {
		// 钱已退但状态没抢到，高危，必须留痕
		GetMonitor().RecordCompensationInconsistency()
		log.Printf("[SEVERE] 订单 %d 退款成功但状态流转失败: %v", o.ID, err)
		return nil, err
	}

	// 3) 回补库存
	items := stockItemsFromOrder(o)
	if _, err := s.stock.AdjustStock(ctx, items, DirectionRestore); err != nil {
		GetMonitor().RecordCompensationInconsistency()
		_ = s.orders.MarkNeedsReconcile(ctx, o.ID)
		cerr := &CompensationInconsistencyError{OrderID: o.ID, Stage: "库存回补", Err: err}
		log.Printf("[SEVERE] %v", cerr)
		return nil, cerr
	}

	// 4) 积分冲正（本单的 spend 逐条反向入账）
	if _, err := s.mileage.ReverseSpends(ctx, o.ID); err != nil {
		GetMonitor().RecordCompensationInconsistency()
		_ = s.orders.MarkNeedsReconcile(ctx, o.ID)
		cerr := &CompensationInconsistencyError{OrderID: o.ID, Stage: "积分冲正", Err: err}
		log.Printf("[SEVERE] %v", cerr)
		return nil, cerr
	}

	// 5) 退券
	if o.CouponUsageID != 0 {
		if err := s.coupons.Reset(ctx, o.CouponUsageID); err != nil {
			GetMonitor().RecordCompensationInconsistency()
			_ = s.orders.MarkNeedsReconcile(ctx, o.ID)
			cerr := &CompensationInconsistencyError{OrderID: o.ID, Stage: "优惠券冲正", Err: err}
			log.Printf("[SEVERE] %v", cerr)
			return nil, cerr
		}
	}

	if s.notify != nil {
		s.notify.OrderEvent(ctx, NotifyOrderCancelled, o.ID, o.UserID)
	}
	return s.orders.GetByID(ctx, orderID)
}

// Get 查询订单
func (s *OrderService) Get(ctx context.Context, orderID int64) (*order.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListByUser 用户订单列表
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListRecent 后台最新订单
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.orders.ListRecent(ctx, limit)
}

// priceItems 逐行计价：颜色款取商品价，附加选项在商品价上加价。
// 选项名不存在时带可用名称报错，和库存协议口径一致。
func (s *OrderService) priceItems(ctx context.Context, items []CheckoutItem) ([]order.Item, int64, error) {
	cache := make(map[int64]*product.Product)
	out := make([]order.Item, 0, len(items))
	var subtotal int64

	for _, it := range items {
		p, ok := cache[it.ProductID]
		if !ok {
			var err error
			p, err = s.products.GetByID(ctx, it.ProductID)
			if err != nil {
				return nil, 0, err
			}
			cache[it.ProductID] = p
		}

		unit := p.Price
		if it.Selector.Additional != "" {
			found := false
			for _, opt := range p.AdditionalOptions {
				if opt.Name == it.Selector.Additional {
					unit += opt.AdditionalPrice
					found = true
					break
				}
			}
			if !found {
				return nil, 0, optionNotFound(p, it.Selector.Additional)
			}
		} else {
			found := false
			for _, v := range p.Variants {
				if v.ColorName == it.Selector.ColorName {
					found = true
					break
				}
			}
			if !found {
				return nil, 0, optionNotFound(p, it.Selector.ColorName)
			}
		}

		out = append(out, order.Item{
			ProductID:      it.ProductID,
			ColorName:      it.Selector.ColorName,
			AdditionalName: it.Selector.Additional,
			Quantity:       it.Quantity,
			Price:          unit,
		})
		subtotal += unit * it.Quantity
	}
	return out, subtotal, nil
}

func optionNotFound(p *product.Product, selector string) error {
	names := make([]string, 0, len(p.Variants)+len(p.AdditionalOptions))
	for _, v := range p.Variants {
		names = append(names, v.ColorName)
	}
	for _, opt := range p.AdditionalOptions {
		names = append(names, opt.Name)
	}
	return &product.OptionNotFoundError{
		ProductID:  p.ID,
		Selector:   selector,
		ValidNames: names,
	}
}

// abortCheckout 建单之后的失败回滚：回补库存、冲正积分、退款、关单
func (s *OrderService) abortCheckout(ctx context.Context, o *order.Order, items []StockItem, reference string, reverseMileage bool) {
	s.stock.compensate(ctx, items, DirectionReduce)
	if reverseMileage {
		if _, err := s.mileage.ReverseSpends(ctx, o.ID); err != nil {
			GetMonitor().RecordCompensationInconsistency()
			log.Printf("[SEVERE] 订单 %d 回滚时积分冲正失败: %v", o.ID, err)
		}
	}
	s.refundOnAbort(ctx, reference, fmt.Sprintf("订单 #%d 回滚", o.ID))
	if err := s.orders.UpdateStatus(ctx, o.ID, order.StatusPending, order.StatusCancel, ""); err != nil {
		GetMonitor().RecordCompensationInconsistency()
		log.Printf("[SEVERE] 订单 %d 回滚时关单失败: %v", o.ID, err)
	}
}

// refundOnAbort 下单中途失败的退款，失败只记录不再传播（原始错误优先）
func (s *OrderService) refundOnAbort(ctx context.Context, reference, reason string) {
	if err := s.payment.Refund(ctx, reference, reason); err != nil {
		GetMonitor().RecordRefundFailure()
		log.Printf("[SEVERE] 回滚退款失败 reference=%s: %v", reference, err)
	}
}

func stockItemsFromOrder(o *order.Order) []StockItem {
	items := make([]StockItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, StockItem{
			ProductID: it.ProductID,
			Selector: product.Selector{
				ColorName:  it.ColorName,
				Additional: it.AdditionalName,
			},
			Quantity: it.Quantity,
		})
	}
	return items
}
