package product

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Product 商品模型
// AggregateQuantity 是冗余的总库存字段，必须等于所有颜色与附加选项库存之和，
// 只能通过仓储的库存调整/整体替换方法间接修改，禁止外部直接写。
type Product struct {
	ID                int64  `gorm:"primaryKey"`
	Name              string `gorm:"size:128;not null"`
	Description       string `gorm:"size:512"`
	Price             int64  `gorm:"not null"` // 分
	AggregateQuantity int64  `gorm:"not null"` // 冗余总库存 = sum(颜色库存) + sum(附加选项库存)
	Status            int    `gorm:"index"`    // 0:下架 1:上架
	Variants          []Variant          `gorm:"constraint:OnDelete:CASCADE"`
	AdditionalOptions []AdditionalOption `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Variant 颜色款式，每个颜色独立计库存
type Variant struct {
	ID            int64  `gorm:"primaryKey"`
	ProductID     int64  `gorm:"index:idx_variant_color,unique;not null"`
	ColorName     string `gorm:"index:idx_variant_color,unique;size:64;not null"`
	StockQuantity int64  `gorm:"not null"` // 非负
	Position      int    `gorm:"not null"` // 列表顺序
}

// AdditionalOption 附加选项（加价购），同样独立计库存
type AdditionalOption struct {
	ID              int64  `gorm:"primaryKey"`
	ProductID       int64  `gorm:"index:idx_option_name,unique;not null"`
	Name            string `gorm:"index:idx_option_name,unique;size:64;not null"`
	AdditionalPrice int64  `gorm:"not null"` // 分
	StockQuantity   int64  `gorm:"not null"`
	Position        int    `gorm:"not null"`
}

// Selector 定位一条库存记录：颜色名或附加选项名，二选一
type Selector struct {
	ColorName  string
	Additional string
}

// Valid 恰好指定一个选择器才合法
func (s Selector) Valid() bool {
	return (s.ColorName == "") != (s.Additional == "")
}

func (s Selector) String() string {
	if s.ColorName != "" {
		return s.ColorName
	}
	return s.Additional
}

// StockChange 一次库存调整的前后快照
type StockChange struct {
	ProductID     int64  `json:"productId"`
	Selector      string `json:"selector"`
	PreviousStock int64  `json:"previousStock"`
	NewStock      int64  `json:"newStock"`
}

// NotFoundError 商品不存在
type NotFoundError struct {
	ProductID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("商品不存在: %d", e.ProductID)
}

// OptionNotFoundError 指定的颜色/附加选项不存在，携带可用名称方便排查
type OptionNotFoundError struct {
	ProductID  int64
	Selector   string
	ValidNames []string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("商品 %d 不存在选项 %q，可用选项: [%s]",
		e.ProductID, e.Selector, strings.Join(e.ValidNames, ", "))
}

// InsufficientStockError 库存不足，携带当前库存与请求数量
type InsufficientStockError struct {
	ProductID         int64
	Selector          string
	AvailableStock    int64
	RequestedQuantity int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("商品 %d 选项 %q 库存不足: 当前 %d，请求 %d",
		e.ProductID, e.Selector, e.AvailableStock, e.RequestedQuantity)
}

// Repository 商品仓储接口
// 所有库存写入都必须经过 AdjustStock / ReplaceOptions，两者内部
// 与 AggregateQuantity 的重算在同一事务中提交。
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	ListOnline(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error

	// AdjustStock 调整单条库存。reduce=true 时由存储层的条件更新保证
	// stock_quantity >= quantity，条件不满足返回 InsufficientStockError，
	// 绝不出现负库存；restore 无条件加回。
	AdjustStock(ctx context.Context, productID int64, sel Selector, quantity int64, reduce bool) (*StockChange, error)

	// ReplaceOptions 整体替换颜色/附加选项列表（后台编辑用），同事务重算总库存
	ReplaceOptions(ctx context.Context, productID int64, variants []Variant, options []AdditionalOption) error

	// RecomputeAggregate 重算冗余总库存并写回，返回新值
	RecomputeAggregate(ctx context.Context, productID int64) (int64, error)
}
