package service

import "context"

// PaymentGateway 支付协作方。对核心来说它是不透明的：
// 授权成功拿到凭证号，退款只关心成败，线协议细节在 infra/payment。
type PaymentGateway interface {
	// Authorize 扣款授权，成功返回支付凭证号
	Authorize(ctx context.Context, userID, amount int64) (string, error)
	// Refund 按凭证号退款，返回 nil 即退款成功
	Refund(ctx context.Context, reference, reason string) error
}
