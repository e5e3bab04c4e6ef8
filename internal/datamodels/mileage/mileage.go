package mileage

import (
	"context"
	"time"
)

// 积分流水类型
const (
	TypeEarn  = "earn"  // 入账
	TypeSpend = "spend" // 抵扣
)

// Entry 积分流水，只追加：冲正是一条反向新流水，绝不改写历史。
// 余额永远由流水按创建顺序折算（sum(earn) - sum(spend)），不单独存计数器。
type Entry struct {
	ID             int64  `gorm:"primaryKey"`
	UserID         int64  `gorm:"index;not null"`
	Type           string `gorm:"size:8;index;not null"` // earn / spend
	Amount         int64  `gorm:"not null"`              // 正整数
	RelatedOrderID int64  `gorm:"index"`                 // 关联订单，审计用
	Note           string `gorm:"size:255"`
	CreatedAt      time.Time `gorm:"index"`
}

// Repository 积分流水仓储接口，只有追加和查询
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByUser(ctx context.Context, userID int64) ([]*Entry, error)  // 按创建顺序
	ListByOrder(ctx context.Context, orderID int64) ([]*Entry, error)
}
