package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
)

// Gateway 支付网关 HTTP 客户端。
// 对外只有授权和退款两个动作，响应里除 success/reference/message 外一概不解析。
type Gateway struct {
	baseURL string
	client  *http.Client
}

// New 创建支付网关客户端
func New(cfg *config.PaymentConfig) *Gateway {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type gatewayResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// Authorize 扣款授权，成功返回支付凭证号
func (g *Gateway) Authorize(ctx context.Context, userID, amount int64) (string, error) {
	resp, err := g.post(ctx, "/authorize", map[string]interface{}{
		"user_id": userID,
		"amount":  amount,
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("支付授权被拒绝: %s", resp.Message)
	}
	return resp.Reference, nil
}

// Refund 按凭证号退款
func (g *Gateway) Refund(ctx context.Context, reference, reason string) error {
	resp, err := g.post(ctx, "/refund", map[string]interface{}{
		"reference": reference,
		"reason":    reason,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("退款被拒绝: %s", resp.Message)
	}
	return nil
}

func (g *Gateway) post(ctx context.Context, path string, payload map[string]interface{}) (*gatewayResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("支付网关请求失败: %w", err)
	}
	defer res.Body.Close()

	var out gatewayResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("支付网关响应解析失败: %w", err)
	}
	return &out, nil
}
