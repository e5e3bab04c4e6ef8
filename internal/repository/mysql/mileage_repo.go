package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/mileage"
)

type mileageRepo struct {
	db *gorm.DB
}

// NewMileageRepository 创建积分流水仓储
func NewMileageRepository(db *gorm.DB) mileage.Repository {
	return &mileageRepo{db: db}
}

func (r *mileageRepo) Append(ctx context.Context, e *mileage.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ListByUser 按创建顺序返回，余额折算依赖这个顺序
func (r *mileageRepo) ListByUser(ctx context.Context, userID int64) ([]*mileage.Entry, error) {
	var list []*mileage.Entry
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *mileageRepo) ListByOrder(ctx context.Context, orderID int64) ([]*mileage.Entry, error) {
	var list []*mileage.Entry
	if err := r.db.WithContext(ctx).
		Where("related_order_id = ?", orderID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
