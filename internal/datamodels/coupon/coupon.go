package coupon

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyUsed 该券已被核销且尚未冲正
	ErrAlreadyUsed = errors.New("优惠券已使用")
	// ErrExpired 券已过期
	ErrExpired = errors.New("优惠券已过期")
	// ErrUsageNotFound 用户没有这张券
	ErrUsageNotFound = errors.New("优惠券领取记录不存在")
)

// Coupon 优惠券模板
type Coupon struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"size:128;not null"`
	DiscountAmount int64  `gorm:"not null"` // 抵扣金额，分
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// Usage 用户的领券记录。例外地允许原地改写 IsUsed：
// 同一条领取记录同一时刻最多只有一次未冲正的核销。
type Usage struct {
	ID          int64 `gorm:"primaryKey"`
	UserID      int64 `gorm:"index;not null"`
	CouponID    int64 `gorm:"index;not null"`
	IsUsed      bool  `gorm:"not null"`
	UsedAt      *time.Time
	UsedOrderID int64 `gorm:"index"`
	CreatedAt   time.Time
}

// Repository 优惠券仓储接口
type Repository interface {
	CreateCoupon(ctx context.Context, c *Coupon) error
	GetCoupon(ctx context.Context, id int64) (*Coupon, error)
	ListCoupons(ctx context.Context) ([]*Coupon, error)

	Assign(ctx context.Context, u *Usage) error
	GetUsage(ctx context.Context, id int64) (*Usage, error)
	ListUsagesByUser(ctx context.Context, userID int64) ([]*Usage, error)

	// MarkUsed 条件更新：仅当 is_used=false 时核销，否则返回 ErrAlreadyUsed
	MarkUsed(ctx context.Context, usageID, orderID int64) error
	// ResetUsage 冲正：is_used 置回 false 并清空 used_at / used_order_id
	ResetUsage(ctx context.Context, usageID int64) error
}
