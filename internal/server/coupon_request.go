package server

import (
	"fmt"
	"time"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/coupon"
)

// buildCoupon 组装券模板，过期时间接受 RFC3339 或留空（永不过期）
func buildCoupon(name string, discount int64, expiresAt string) (*coupon.Coupon, error) {
	c := &coupon.Coupon{
		Name:           name,
		DiscountAmount: discount,
	}
	if expiresAt != "" {
		t, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("过期时间格式不正确（应为 RFC3339）: %w", err)
		}
		c.ExpiresAt = t
	}
	return c, nil
}
