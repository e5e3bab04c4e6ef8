package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
)

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) product.Repository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("AdditionalOptions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &product.NotFoundError{ProductID: id}
		}
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) ListAll(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) ListOnline(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Where("status = ?", 1).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return recomputeAggregateTx(tx, p.ID, &p.AggregateQuantity)
	})
}

func (r *productRepo) Update(ctx context.Context, p *product.Product) error {
	// 只更新基础字段，库存列表走 ReplaceOptions / AdjustStock
	return r.db.WithContext(ctx).Model(&product.Product{ID: p.ID}).
		Select("name", "description", "price", "status").
		Updates(p).Error
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&product.Variant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&product.AdditionalOption{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product.Product{}, id).Error
	})
}

// AdjustStock 单条库存调整。
// reduce 路径的防超卖不靠先读后写，而是把 stock_quantity >= quantity
// 直接放进 UPDATE 的 WHERE 条件，由数据库裁决并发竞争；
// 条件更新未命中时再补一次读区分“商品/选项不存在”与“库存不足”。
// 库存变更与总库存重算在同一事务提交，读侧不会看到两者不一致。
func (r *productRepo) AdjustStock(ctx context.Context, productID int64, sel product.Selector, quantity int64, reduce bool) (*product.StockChange, error) {
	if !sel.Valid() {
		return nil, fmt.Errorf("选择器必须恰好指定颜色或附加选项之一")
	}

	table, nameCol, name := "variants", "color_name", sel.ColorName
	if sel.Additional != "" {
		table, nameCol, name = "additional_options", "name", sel.Additional
	}

	var change *product.StockChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Table(table).
			Where("product_id = ? AND "+nameCol+" = ?", productID, name)
		var res *gorm.DB
		if reduce {
			res = q.Where("stock_quantity >= ?", quantity).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
		} else {
			res = q.Update("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 未命中不是静默成功，必须区分三种失败
			return r.classifyMiss(tx, productID, table, nameCol, name, quantity)
		}

		var now int64
		row := tx.Table(table).
			Where("product_id = ? AND "+nameCol+" = ?", productID, name).
			Select("stock_quantity").Row()
		if err := row.Scan(&now); err != nil {
			return err
		}

		prev := now + quantity
		if !reduce {
			prev = now - quantity
		}
		change = &product.StockChange{
			ProductID:     productID,
			Selector:      name,
			PreviousStock: prev,
			NewStock:      now,
		}

		return recomputeAggregateTx(tx, productID, nil)
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// classifyMiss 条件更新零命中时的归因：商品不存在 / 选项不存在 / 库存不足
func (r *productRepo) classifyMiss(tx *gorm.DB, productID int64, table, nameCol, name string, requested int64) error {
	var exists int64
	if err := tx.Model(&product.Product{}).Where("id = ?", productID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return &product.NotFoundError{ProductID: productID}
	}

	var current int64
	row := tx.Table(table).
		Where("product_id = ? AND "+nameCol+" = ?", productID, name).
		Select("stock_quantity").Row()
	if err := row.Scan(&current); err != nil {
		// 行不存在：收集两类可用名称方便排查
		names, nerr := validSelectorNames(tx, productID)
		if nerr != nil {
			return nerr
		}
		return &product.OptionNotFoundError{
			ProductID:  productID,
			Selector:   name,
			ValidNames: names,
		}
	}
	return &product.InsufficientStockError{
		ProductID:         productID,
		Selector:          name,
		AvailableStock:    current,
		RequestedQuantity: requested,
	}
}

func validSelectorNames(tx *gorm.DB, productID int64) ([]string, error) {
	var colors, options []string
	if err := tx.Table("variants").Where("product_id = ?", productID).
		Order("position ASC").Pluck("color_name", &colors).Error; err != nil {
		return nil, err
	}
	if err := tx.Table("additional_options").Where("product_id = ?", productID).
		Order("position ASC").Pluck("name", &options).Error; err != nil {
		return nil, err
	}
	return append(colors, options...), nil
}

// ReplaceOptions 整体替换颜色/附加选项列表，总库存在同一事务内重算
func (r *productRepo) ReplaceOptions(ctx context.Context, productID int64, variants []product.Variant, options []product.AdditionalOption) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&product.Product{}).Where("id = ?", productID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return &product.NotFoundError{ProductID: productID}
		}

		if err := tx.Where("product_id = ?", productID).Delete(&product.Variant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", productID).Delete(&product.AdditionalOption{}).Error; err != nil {
			return err
		}
		for i := range variants {
			variants[i].ID = 0
			variants[i].ProductID = productID
			variants[i].Position = i
		}
		for i := range options {
			options[i].ID = 0
			options[i].ProductID = productID
			options[i].Position = i
		}
		if len(variants) > 0 {
			if err := tx.Create(&variants).Error; err != nil {
				return err
			}
		}
		if len(options) > 0 {
			if err := tx.Create(&options).Error; err != nil {
				return err
			}
		}
		return recomputeAggregateTx(tx, productID, nil)
	})
}

// RecomputeAggregate 重算冗余总库存并返回新值
func (r *productRepo) RecomputeAggregate(ctx context.Context, productID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return recomputeAggregateTx(tx, productID, &total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// recomputeAggregateTx 在当前事务内把两张库存表求和写回 aggregate_quantity。
// out 非空时顺带读出新值。
func recomputeAggregateTx(tx *gorm.DB, productID int64, out *int64) error {
	res := tx.Model(&product.Product{}).Where("id = ?", productID).
		Update("aggregate_quantity", gorm.Expr(
			"(SELECT COALESCE(SUM(stock_quantity), 0) FROM variants WHERE product_id = ?)"+
				" + (SELECT COALESCE(SUM(stock_quantity), 0) FROM additional_options WHERE product_id = ?)",
			productID, productID))
	if res.Error != nil {
		return res.Error
	}
	if out != nil {
		row := tx.Model(&product.Product{}).Where("id = ?", productID).
			Select("aggregate_quantity").Row()
		if err := row.Scan(out); err != nil {
			return err
		}
	}
	return nil
}
