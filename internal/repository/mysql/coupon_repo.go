package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/coupon"
)

type couponRepo struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓储
func NewCouponRepository(db *gorm.DB) coupon.Repository {
	return &couponRepo{db: db}
}

func (r *couponRepo) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *couponRepo) GetCoupon(ctx context.Context, id int64) (*coupon.Coupon, error) {
	var c coupon.Coupon
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) ListCoupons(ctx context.Context) ([]*coupon.Coupon, error) {
	var list []*coupon.Coupon
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *couponRepo) Assign(ctx context.Context, u *coupon.Usage) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *couponRepo) GetUsage(ctx context.Context, id int64) (*coupon.Usage, error) {
	var u coupon.Usage
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coupon.ErrUsageNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *couponRepo) ListUsagesByUser(ctx context.Context, userID int64) ([]*coupon.Usage, error) {
	var list []*coupon.Usage
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// MarkUsed 条件核销：WHERE 带 is_used = false，重复核销命中零行
func (r *couponRepo) MarkUsed(ctx context.Context, usageID, orderID int64) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&coupon.Usage{}).
		Where("id = ? AND is_used = ?", usageID, false).
		Updates(map[string]interface{}{
			"is_used":       true,
			"used_at":       &now,
			"used_order_id": orderID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&coupon.Usage{}).
			Where("id = ?", usageID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return coupon.ErrUsageNotFound
		}
		return coupon.ErrAlreadyUsed
	}
	return nil
}

// ResetUsage 冲正：置回未使用并清空核销痕迹。
// 对本就未使用的记录重置是空操作（MySQL 对无变化的 UPDATE 报零行），
// 所以不能用 RowsAffected 判存在性，先查再改。
func (r *couponRepo) ResetUsage(ctx context.Context, usageID int64) error {
	var exists int64
	if err := r.db.WithContext(ctx).Model(&coupon.Usage{}).
		Where("id = ?", usageID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return coupon.ErrUsageNotFound
	}
	return r.db.WithContext(ctx).Model(&coupon.Usage{}).
		Where("id = ?", usageID).
		Updates(map[string]interface{}{
			"is_used":       false,
			"used_at":       nil,
			"used_order_id": 0,
		}).Error
}
