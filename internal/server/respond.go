package server

import (
	"errors"

	"github.com/kataras/iris/v12"
	"gorm.io/gorm"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/coupon"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/order"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/service"
)

// writeError 把领域错误映射成结构化响应。
// 4xx 一律带人类可读的 details；库存不足额外带当前/请求数量。
func writeError(ctx iris.Context, err error) {
	var (
		vErr    *service.ValidationError
		nfErr   *product.NotFoundError
		optErr  *product.OptionNotFoundError
		insErr  *product.InsufficientStockError
		compErr *service.CompensationInconsistencyError
	)

	switch {
	case errors.As(err, &vErr):
		ctx.StopWithJSON(400, iris.Map{
			"code":    400,
			"msg":     "参数错误",
			"details": vErr.Reason,
		})
	case errors.As(err, &nfErr):
		ctx.StopWithJSON(404, iris.Map{
			"code":      404,
			"msg":       "商品不存在",
			"details":   err.Error(),
			"productId": nfErr.ProductID,
		})
	case errors.As(err, &optErr):
		ctx.StopWithJSON(404, iris.Map{
			"code":       404,
			"msg":        "选项不存在",
			"details":    err.Error(),
			"productId":  optErr.ProductID,
			"selector":   optErr.Selector,
			"validNames": optErr.ValidNames,
		})
	case errors.As(err, &insErr):
		ctx.StopWithJSON(409, iris.Map{
			"code":              409,
			"msg":               "库存不足",
			"details":           err.Error(),
			"productId":         insErr.ProductID,
			"selector":          insErr.Selector,
			"availableStock":    insErr.AvailableStock,
			"requestedQuantity": insErr.RequestedQuantity,
		})
	case errors.Is(err, order.ErrStatusConflict):
		ctx.StopWithJSON(409, iris.Map{
			"code":    409,
			"msg":     "订单状态冲突",
			"details": err.Error(),
		})
	case errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageNotFound),
		errors.Is(err, service.ErrInsufficientMileage):
		ctx.StopWithJSON(400, iris.Map{
			"code":    400,
			"msg":     "请求被拒绝",
			"details": err.Error(),
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		ctx.StopWithJSON(404, iris.Map{
			"code":    404,
			"msg":     "记录不存在",
			"details": err.Error(),
		})
	case errors.As(err, &compErr):
		// 补偿失败是最高危的一类，响应里明确提示需要人工对账
		ctx.StopWithJSON(500, iris.Map{
			"code":    500,
			"msg":     "部分补偿失败，已标记人工对账",
			"details": err.Error(),
			"orderId": compErr.OrderID,
		})
	default:
		ctx.StopWithJSON(500, iris.Map{
			"code":    500,
			"msg":     "服务器内部错误",
			"details": err.Error(),
		})
	}
}
