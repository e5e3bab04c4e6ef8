package order

import (
	"context"
	"errors"
	"time"
)

// ErrStatusConflict 条件更新未命中：订单状态已被并发修改或不满足前置状态
var ErrStatusConflict = errors.New("订单状态已变化，流转未执行")

// Status 订单配送状态
type Status string

const (
	StatusPending Status = "pending" // 已支付待备货
	StatusReady   Status = "ready"   // 备货完成
	StatusShipped Status = "shipped" // 已发货
	StatusConfirm Status = "confirm" // 确认收货（终态）
	StatusCancel  Status = "cancel"  // 已取消（终态）
)

// transitions 合法状态流转表；confirm/cancel 为终态不再外流
var transitions = map[Status][]Status{
	StatusPending: {StatusReady, StatusCancel},
	StatusReady:   {StatusShipped, StatusCancel},
	StatusShipped: {StatusConfirm, StatusCancel},
}

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusShipped, StatusConfirm, StatusCancel:
		return true
	}
	return false
}

// Terminal 是否终态
func (s Status) Terminal() bool {
	return s == StatusConfirm || s == StatusCancel
}

// CanTransition 判断 from -> to 是否合法
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order 订单模型
// Items 创建后不可变，生命周期内只有 Status / TrackingNumber / NeedsReconcile 会变化。
type Order struct {
	ID               int64  `gorm:"primaryKey"`
	UserID           int64  `gorm:"index;not null"`
	Status           Status `gorm:"size:16;index;not null"`
	PaymentReference string `gorm:"size:64;index"` // 支付网关返回的凭证号
	TrackingNumber   string `gorm:"size:64"`       // 仅在进入 shipped 时写入
	TotalPrice       int64  `gorm:"not null"`      // 实付金额，分
	MileageUsed      int64  `gorm:"not null"`      // 本单抵扣的积分
	MileageEarn      int64  `gorm:"not null"`      // 待入账积分，确认收货后才落账
	CouponUsageID    int64  `gorm:"index"`         // 0 表示未用券
	NeedsReconcile   bool   `gorm:"not null"`      // 退款成功但库存回补失败，需人工对账
	Items            []Item `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Item 订单行，按名称引用商品选项，绝不内嵌库存数
type Item struct {
	ID             int64  `gorm:"primaryKey"`
	OrderID        int64  `gorm:"index;not null"`
	ProductID      int64  `gorm:"index;not null"`
	ColorName      string `gorm:"size:64"` // 与 AdditionalName 二选一
	AdditionalName string `gorm:"size:64"`
	Quantity       int64  `gorm:"not null"` // 正整数
	Price          int64  `gorm:"not null"` // 下单时单价快照，分
}

// Repository 订单仓储接口
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)

	// UpdateStatus 条件更新：仅当当前状态为 from 时生效，
	// 并发的两次流转只会有一次成功。tracking 仅发货时传入。
	UpdateStatus(ctx context.Context, id int64, from, to Status, tracking string) error

	// MarkNeedsReconcile 标记订单需要人工对账（退款成功但补库存失败）
	MarkNeedsReconcile(ctx context.Context, id int64) error
}
