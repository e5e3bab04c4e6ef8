package service

import "fmt"

// ValidationError 请求形参不合法，未产生任何状态变更
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "参数错误: " + e.Reason
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// CompensationInconsistencyError 补偿动作失败后的不一致状态。
// 比普通失败严重：前序动作（退款/扣库存）已经生效，剩下的只能人工对账，
// 不做自动重试，重试破坏性写入有二次扣减风险。
type CompensationInconsistencyError struct {
	OrderID int64
	Stage   string // 失败的补偿环节
	Err     error
}

func (e *CompensationInconsistencyError) Error() string {
	return fmt.Sprintf("订单 %d 补偿失败（%s），需人工对账: %v", e.OrderID, e.Stage, e.Err)
}

func (e *CompensationInconsistencyError) Unwrap() error {
	return e.Err
}
