package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/mileage"
)

// ErrInsufficientMileage 积分余额不足
var ErrInsufficientMileage = errors.New("积分余额不足")

// MileageService 积分账本。流水只追加，余额永远现算，
// 不维护单独的余额计数器（和商品总库存的陈旧风险是同一类问题，
// 但积分读频率低得多，直接折算即可）。
type MileageService struct {
	repo mileage.Repository
}

// NewMileageService 创建积分服务
func NewMileageService(repo mileage.Repository) *MileageService {
	return &MileageService{repo: repo}
}

// Balance 按创建顺序折算余额：sum(earn) - sum(spend)
func (s *MileageService) Balance(ctx context.Context, userID int64) (int64, error) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	var balance int64
	for _, e := range entries {
		switch e.Type {
		case mileage.TypeEarn:
			balance += e.Amount
		case mileage.TypeSpend:
			balance -= e.Amount
		}
	}
	return balance, nil
}

// Entries 查询积分流水
func (s *MileageService) Entries(ctx context.Context, userID int64) ([]*mileage.Entry, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Earn 入账
func (s *MileageService) Earn(ctx context.Context, userID, amount, orderID int64, note string) error {
	if amount <= 0 {
		return validationErrorf("积分入账金额必须为正数")
	}
	return s.repo.Append(ctx, &mileage.Entry{
		UserID:         userID,
		Type:           mileage.TypeEarn,
		Amount:         amount,
		RelatedOrderID: orderID,
		Note:           note,
	})
}

// Spend 抵扣，先折算余额再追加 spend 流水
func (s *MileageService) Spend(ctx context.Context, userID, amount, orderID int64, note string) error {
	if amount <= 0 {
		return validationErrorf("积分抵扣金额必须为正数")
	}
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientMileage
	}
	return s.repo.Append(ctx, &mileage.Entry{
		UserID:         userID,
		Type:           mileage.TypeSpend,
		Amount:         amount,
		RelatedOrderID: orderID,
		Note:           note,
	})
}

// ReverseSpends 冲正某订单的全部 spend 流水：
// 逐条追加等额 earn，历史记录原样保留。返回冲正总额。
func (s *MileageService) ReverseSpends(ctx context.Context, orderID int64) (int64, error) {
	entries, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	var reversed int64
	for _, e := range entries {
		if e.Type != mileage.TypeSpend {
			continue
		}
		if err := s.repo.Append(ctx, &mileage.Entry{
			UserID:         e.UserID,
			Type:           mileage.TypeEarn,
			Amount:         e.Amount,
			RelatedOrderID: orderID,
			Note:           fmt.Sprintf("订单 #%d 取消冲正", orderID),
		}); err != nil {
			return reversed, err
		}
		reversed += e.Amount
	}
	return reversed, nil
}
