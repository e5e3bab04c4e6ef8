package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/coupon"
)

func newCouponFixture(t *testing.T, expiresAt time.Time) (*CouponService, int64) {
	t.Helper()
	svc := NewCouponService(newMemCouponRepo())
	c := &coupon.Coupon{Name: "折扣券", DiscountAmount: 2000, ExpiresAt: expiresAt}
	require.NoError(t, svc.CreateCoupon(context.TODO(), c))
	u, err := svc.Assign(context.TODO(), testUserID, c.ID)
	require.NoError(t, err)
	return svc, u.ID
}

func TestCouponPeekReturnsDiscount(t *testing.T) {
	svc, usageID := newCouponFixture(t, time.Now().Add(time.Hour))

	discount, err := svc.Peek(context.TODO(), testUserID, usageID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), discount)

	// Peek 是只读的，可以重复调用
	discount, err = svc.Peek(context.TODO(), testUserID, usageID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), discount)
}

func TestCouponPeekRejectsForeignUsage(t *testing.T) {
	svc, usageID := newCouponFixture(t, time.Now().Add(time.Hour))

	_, err := svc.Peek(context.TODO(), testUserID+1, usageID)
	assert.ErrorIs(t, err, coupon.ErrUsageNotFound)
}

func TestCouponPeekRejectsExpired(t *testing.T) {
	svc, usageID := newCouponFixture(t, time.Now().Add(-time.Minute))

	_, err := svc.Peek(context.TODO(), testUserID, usageID)
	assert.ErrorIs(t, err, coupon.ErrExpired)
}

func TestCouponRedeemOnce(t *testing.T) {
	svc, usageID := newCouponFixture(t, time.Now().Add(time.Hour))

	require.NoError(t, svc.Redeem(context.TODO(), testUserID, usageID, 31))

	// 二次核销被拒
	err := svc.Redeem(context.TODO(), testUserID, usageID, 32)
	assert.ErrorIs(t, err, coupon.ErrAlreadyUsed)
}

func TestCouponResetAllowsReuse(t *testing.T) {
	svc, usageID := newCouponFixture(t, time.Now().Add(time.Hour))

	require.NoError(t, svc.Redeem(context.TODO(), testUserID, usageID, 31))
	require.NoError(t, svc.Reset(context.TODO(), usageID))

	// 冲正后可以再次核销
	require.NoError(t, svc.Redeem(context.TODO(), testUserID, usageID, 33))
}

func TestCreateCouponValidation(t *testing.T) {
	svc := NewCouponService(newMemCouponRepo())

	var verr *ValidationError
	err := svc.CreateCoupon(context.TODO(), &coupon.Coupon{Name: "", DiscountAmount: 100})
	assert.ErrorAs(t, err, &verr)
	err = svc.CreateCoupon(context.TODO(), &coupon.Coupon{Name: "零元券", DiscountAmount: 0})
	assert.ErrorAs(t, err, &verr)
}
