package service

import (
	"context"
	"time"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/coupon"
)

// CouponService 优惠券：领取、核销、冲正
type CouponService struct {
	repo coupon.Repository
}

// NewCouponService 创建优惠券服务
func NewCouponService(repo coupon.Repository) *CouponService {
	return &CouponService{repo: repo}
}

// CreateCoupon 后台新建券模板
func (s *CouponService) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	if c.Name == "" {
		return validationErrorf("优惠券名称不能为空")
	}
	if c.DiscountAmount <= 0 {
		return validationErrorf("抵扣金额必须为正数")
	}
	return s.repo.CreateCoupon(ctx, c)
}

// ListCoupons 后台券列表
func (s *CouponService) ListCoupons(ctx context.Context) ([]*coupon.Coupon, error) {
	return s.repo.ListCoupons(ctx)
}

// Assign 给用户发券
func (s *CouponService) Assign(ctx context.Context, userID, couponID int64) (*coupon.Usage, error) {
	if _, err := s.repo.GetCoupon(ctx, couponID); err != nil {
		return nil, err
	}
	u := &coupon.Usage{UserID: userID, CouponID: couponID}
	if err := s.repo.Assign(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListForUser 用户的券包
func (s *CouponService) ListForUser(ctx context.Context, userID int64) ([]*coupon.Usage, error) {
	return s.repo.ListUsagesByUser(ctx, userID)
}

// Peek 下单前试算：校验归属/未使用/未过期，返回可抵扣金额，不产生写入
func (s *CouponService) Peek(ctx context.Context, userID, usageID int64) (int64, error) {
	u, err := s.repo.GetUsage(ctx, usageID)
	if err != nil {
		return 0, err
	}
	if u.UserID != userID {
		return 0, coupon.ErrUsageNotFound
	}
	if u.IsUsed {
		return 0, coupon.ErrAlreadyUsed
	}
	c, err := s.repo.GetCoupon(ctx, u.CouponID)
	if err != nil {
		return 0, err
	}
	if !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt) {
		return 0, coupon.ErrExpired
	}
	return c.DiscountAmount, nil
}

// Redeem 核销。is_used=false 的条件更新兜底并发重复核销。
func (s *CouponService) Redeem(ctx context.Context, userID, usageID, orderID int64) error {
	if _, err := s.Peek(ctx, userID, usageID); err != nil {
		return err
	}
	return s.repo.MarkUsed(ctx, usageID, orderID)
}

// Reset 冲正：订单取消后把券退回可用状态
func (s *CouponService) Reset(ctx context.Context, usageID int64) error {
	return s.repo.ResetUsage(ctx, usageID)
}
