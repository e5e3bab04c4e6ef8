package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，统计核心链路的错误和吞吐
type Monitor struct {
	mu sync.RWMutex

	// 库存协议
	StockAdjustments int64
	StockConflicts   int64 // 条件更新被库存守卫拒绝的次数

	// 补偿链路
	CompensationRuns            int64
	CompensationInconsistencies int64 // 补偿本身失败，需人工对账

	// 外部协作方
	RefundFailures int64
	MQErrors       int64
	RedisErrors    int64

	LastStockConflict   time.Time
	LastInconsistency   time.Time
	LastRefundFailure   time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordStockAdjustment 记录一次成功的库存调整
func (m *Monitor) RecordStockAdjustment() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StockAdjustments++
}

// RecordStockConflict 记录一次被库存守卫拒绝的扣减
func (m *Monitor) RecordStockConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StockConflicts++
	m.LastStockConflict = time.Now()
}

// RecordCompensationRun 记录一次补偿执行
func (m *Monitor) RecordCompensationRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompensationRuns++
}

// RecordCompensationInconsistency 记录补偿失败（高危，需人工介入）
func (m *Monitor) RecordCompensationInconsistency() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompensationInconsistencies++
	m.LastInconsistency = time.Now()
}

// RecordRefundFailure 记录退款失败
func (m *Monitor) RecordRefundFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefundFailures++
	m.LastRefundFailure = time.Now()
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
}

// Snapshot 导出当前计数，后台监控页用
func (m *Monitor) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"stock_adjustments":            m.StockAdjustments,
		"stock_conflicts":              m.StockConflicts,
		"compensation_runs":            m.CompensationRuns,
		"compensation_inconsistencies": m.CompensationInconsistencies,
		"refund_failures":              m.RefundFailures,
		"mq_errors":                    m.MQErrors,
		"redis_errors":                 m.RedisErrors,
		"last_stock_conflict":          m.LastStockConflict,
		"last_inconsistency":           m.LastInconsistency,
		"last_refund_failure":          m.LastRefundFailure,
	}
}
