package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/order"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateStatus 条件更新，WHERE 同时带上当前状态，
// 并发的两次流转只会有一次命中，另一次返回 ErrStatusConflict。
func (r *orderRepo) UpdateStatus(ctx context.Context, id int64, from, to order.Status, tracking string) error {
	updates := map[string]interface{}{"status": to}
	if tracking != "" {
		updates["tracking_number"] = tracking
	}
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&order.Order{}).
			Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}
		return order.ErrStatusConflict
	}
	return nil
}

func (r *orderRepo) MarkNeedsReconcile(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ?", id).
		Update("needs_reconcile", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IsNotFound 方便上层把 gorm 的未找到统一成 404
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
