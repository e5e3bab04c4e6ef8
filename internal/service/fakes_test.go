package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/coupon"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/mileage"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/order"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
)

// ---------- 商品仓储内存实现 ----------

// memProductRepo 与 mysql 实现同语义：调整和总库存重算原子生效，
// reduce 的守卫在锁内判定，并发扣减只会有一个赢家。
type memProductRepo struct {
	mu       sync.Mutex
	products map[int64]*product.Product
	nextID   int64

	// failAdjust 注入调整失败，测补偿链路用
	failAdjust func(productID int64, sel product.Selector, reduce bool) error
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{
		products: make(map[int64]*product.Product),
		nextID:   1,
	}
}

func (r *memProductRepo) addProduct(p *product.Product) *product.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	}
	recompute(p)
	r.products[p.ID] = p
	return p
}

func recompute(p *product.Product) {
	var total int64
	for _, v := range p.Variants {
		total += v.StockQuantity
	}
	for _, o := range p.AdditionalOptions {
		total += o.StockQuantity
	}
	p.AggregateQuantity = total
}

func clone(p *product.Product) *product.Product {
	cp := *p
	cp.Variants = append([]product.Variant(nil), p.Variants...)
	cp.AdditionalOptions = append([]product.AdditionalOption(nil), p.AdditionalOptions...)
	return &cp
}

func (r *memProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, &product.NotFoundError{ProductID: id}
	}
	return clone(p), nil
}

func (r *memProductRepo) ListAll(_ context.Context) ([]*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, clone(p))
	}
	return out, nil
}

func (r *memProductRepo) ListOnline(ctx context.Context) ([]*product.Product, error) {
	all, _ := r.ListAll(ctx)
	out := all[:0]
	for _, p := range all {
		if p.Status == 1 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProductRepo) Create(_ context.Context, p *product.Product) error {
	r.addProduct(p)
	return nil
}

func (r *memProductRepo) Update(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.products[p.ID]
	if !ok {
		return &product.NotFoundError{ProductID: p.ID}
	}
	cur.Name, cur.Description, cur.Price, cur.Status = p.Name, p.Description, p.Price, p.Status
	return nil
}

func (r *memProductRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

func (r *memProductRepo) AdjustStock(_ context.Context, productID int64, sel product.Selector, quantity int64, reduce bool) (*product.StockChange, error) {
	if r.failAdjust != nil {
		if err := r.failAdjust(productID, sel, reduce); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return nil, &product.NotFoundError{ProductID: productID}
	}

	var slot *int64
	if sel.ColorName != "" {
		for i := range p.Variants {
			if p.Variants[i].ColorName == sel.ColorName {
				slot = &p.Variants[i].StockQuantity
				break
			}
		}
	} else {
		for i := range p.AdditionalOptions {
			if p.AdditionalOptions[i].Name == sel.Additional {
				slot = &p.AdditionalOptions[i].StockQuantity
				break
			}
		}
	}
	if slot == nil {
		names := make([]string, 0, len(p.Variants)+len(p.AdditionalOptions))
		for _, v := range p.Variants {
			names = append(names, v.ColorName)
		}
		for _, o := range p.AdditionalOptions {
			names = append(names, o.Name)
		}
		return nil, &product.OptionNotFoundError{ProductID: productID, Selector: sel.String(), ValidNames: names}
	}

	prev := *slot
	if reduce {
		if prev < quantity {
			return nil, &product.InsufficientStockError{
				ProductID:         productID,
				Selector:          sel.String(),
				AvailableStock:    prev,
				RequestedQuantity: quantity,
			}
		}
		*slot = prev - quantity
	} else {
		*slot = prev + quantity
	}
	recompute(p)

	return &product.StockChange{
		ProductID:     productID,
		Selector:      sel.String(),
		PreviousStock: prev,
		NewStock:      *slot,
	}, nil
}

func (r *memProductRepo) ReplaceOptions(_ context.Context, productID int64, variants []product.Variant, options []product.AdditionalOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return &product.NotFoundError{ProductID: productID}
	}
	p.Variants = variants
	p.AdditionalOptions = options
	recompute(p)
	return nil
}

func (r *memProductRepo) RecomputeAggregate(_ context.Context, productID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return 0, &product.NotFoundError{ProductID: productID}
	}
	recompute(p)
	return p.AggregateQuantity, nil
}

// stockOf 测试断言用
func (r *memProductRepo) stockOf(productID int64, sel product.Selector) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.products[productID]
	if sel.ColorName != "" {
		for _, v := range p.Variants {
			if v.ColorName == sel.ColorName {
				return v.StockQuantity
			}
		}
	}
	for _, o := range p.AdditionalOptions {
		if o.Name == sel.Additional {
			return o.StockQuantity
		}
	}
	return -1
}

func (r *memProductRepo) aggregateOf(productID int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].AggregateQuantity
}

// ---------- 订单仓储内存实现 ----------

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*order.Order
	nextID int64
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[int64]*order.Order), nextID: 1}
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = r.nextID
	r.nextID++
	for i := range o.Items {
		o.Items[i].ID = int64(i + 1)
		o.Items[i].OrderID = o.ID
	}
	o.CreatedAt = time.Now()
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	return &cp, nil
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID int64) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memOrderRepo) ListRecent(_ context.Context, limit int) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for _, o := range r.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id int64, from, to order.Status, tracking string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if o.Status != from {
		return order.ErrStatusConflict
	}
	o.Status = to
	if tracking != "" {
		o.TrackingNumber = tracking
	}
	return nil
}

func (r *memOrderRepo) MarkNeedsReconcile(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.NeedsReconcile = true
	return nil
}

// ---------- 积分仓储内存实现 ----------

type memMileageRepo struct {
	mu      sync.Mutex
	entries []*mileage.Entry
	nextID  int64
}

func newMemMileageRepo() *memMileageRepo {
	return &memMileageRepo{nextID: 1}
}

func (r *memMileageRepo) Append(_ context.Context, e *mileage.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memMileageRepo) ListByUser(_ context.Context, userID int64) ([]*mileage.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mileage.Entry
	for _, e := range r.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMileageRepo) ListByOrder(_ context.Context, orderID int64) ([]*mileage.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mileage.Entry
	for _, e := range r.entries {
		if e.RelatedOrderID == orderID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---------- 优惠券仓储内存实现 ----------

type memCouponRepo struct {
	mu      sync.Mutex
	coupons map[int64]*coupon.Coupon
	usages  map[int64]*coupon.Usage
	nextID  int64
}

func newMemCouponRepo() *memCouponRepo {
	return &memCouponRepo{
		coupons: make(map[int64]*coupon.Coupon),
		usages:  make(map[int64]*coupon.Usage),
		nextID:  1,
	}
}

func (r *memCouponRepo) CreateCoupon(_ context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	cp := *c
	r.coupons[c.ID] = &cp
	return nil
}

func (r *memCouponRepo) GetCoupon(_ context.Context, id int64) (*coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCouponRepo) ListCoupons(_ context.Context) ([]*coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*coupon.Coupon
	for _, c := range r.coupons {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memCouponRepo) Assign(_ context.Context, u *coupon.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.usages[u.ID] = &cp
	return nil
}

func (r *memCouponRepo) GetUsage(_ context.Context, id int64) (*coupon.Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usages[id]
	if !ok {
		return nil, coupon.ErrUsageNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memCouponRepo) ListUsagesByUser(_ context.Context, userID int64) ([]*coupon.Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*coupon.Usage
	for _, u := range r.usages {
		if u.UserID == userID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCouponRepo) MarkUsed(_ context.Context, usageID, orderID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usages[usageID]
	if !ok {
		return coupon.ErrUsageNotFound
	}
	if u.IsUsed {
		return coupon.ErrAlreadyUsed
	}
	now := time.Now()
	u.IsUsed = true
	u.UsedAt = &now
	u.UsedOrderID = orderID
	return nil
}

func (r *memCouponRepo) ResetUsage(_ context.Context, usageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usages[usageID]
	if !ok {
		return coupon.ErrUsageNotFound
	}
	u.IsUsed = false
	u.UsedAt = nil
	u.UsedOrderID = 0
	return nil
}

// ---------- 支付/通知协作方 ----------

type fakePayment struct {
	mu          sync.Mutex
	authorized  int
	refunds     []string // reference 列表
	authorizeErr error
	refundErr    error
}

func (f *fakePayment) Authorize(_ context.Context, userID, amount int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authorizeErr != nil {
		return "", f.authorizeErr
	}
	f.authorized++
	return fmt.Sprintf("PAY-%d", f.authorized), nil
}

func (f *fakePayment) Refund(_ context.Context, reference, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunds = append(f.refunds, reference)
	return nil
}

func (f *fakePayment) refundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refunds)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) OrderEvent(_ context.Context, event string, orderID, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) eventList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}
