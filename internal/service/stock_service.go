package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
)

// Direction 库存调整方向
type Direction string

const (
	DirectionReduce  Direction = "reduce"  // 下单扣减
	DirectionRestore Direction = "restore" // 取消/退款回补
)

// Valid 是否为已知方向
func (d Direction) Valid() bool {
	return d == DirectionReduce || d == DirectionRestore
}

// redisAggregateKey 商品总库存缓存键，商品页读这里避免回源
const redisAggregateKey = "catalog:aggregate:%d"

// StockItem 一条库存调整请求
type StockItem struct {
	ProductID int64
	Selector  product.Selector
	Quantity  int64
}

// AdjustmentResult 整批调整的结果，按 item 顺序给出前后库存
type AdjustmentResult struct {
	Action  Direction             `json:"action"`
	Updates []product.StockChange `json:"updates"`
}

// StockService 库存调整协议的唯一入口。
// 下单、取消、后台手工调整走的都是同一个 AdjustStock，不允许第二条代码路径。
type StockService struct {
	repo  product.Repository
	redis radix.Client // 允许为 nil（单测/无缓存部署）
}

// NewStockService 创建库存服务
func NewStockService(repo product.Repository, redis radix.Client) *StockService {
	return &StockService{repo: repo, redis: redis}
}

// AdjustStock 按列表顺序逐条调整库存。
//
// 每条调整（含总库存重算）独立落库，前一条成功后才处理下一条；
// 中途失败时对已生效的前缀同步执行反向补偿，再把原始错误抛给调用方，
// 调用方不会观察到"半个订单"的库存。防超卖不在这里判断——
// 条件写在仓储层的 UPDATE WHERE 里，由数据库裁决并发。
func (s *StockService) AdjustStock(ctx context.Context, items []StockItem, direction Direction) (*AdjustmentResult, error) {
	if err := validateItems(items, direction); err != nil {
		return nil, err
	}

	// 同一商品同一选项的多条请求合并为一条条件更新，
	// 避免后一条读到前一条的中间值
	merged := coalesce(items)

	result := &AdjustmentResult{Action: direction}
	for i, it := range merged {
		change, err := s.repo.AdjustStock(ctx, it.ProductID, it.Selector, it.Quantity, direction == DirectionReduce)
		if err != nil {
			var insufficient *product.InsufficientStockError
			if errors.As(err, &insufficient) {
				GetMonitor().RecordStockConflict()
			}
			// 前缀补偿：已生效的条目按相反方向回滚
			s.compensate(ctx, merged[:i], direction)
			return nil, err
		}
		result.Updates = append(result.Updates, *change)
		GetMonitor().RecordStockAdjustment()
		s.refreshAggregateCache(ctx, it.ProductID)
	}
	return result, nil
}

// RecomputeAggregate 重算指定商品的冗余总库存（幂等），并刷新缓存
func (s *StockService) RecomputeAggregate(ctx context.Context, productID int64) (int64, error) {
	total, err := s.repo.RecomputeAggregate(ctx, productID)
	if err != nil {
		return 0, err
	}
	s.cacheAggregate(ctx, productID, total)
	return total, nil
}

// compensate 对已生效的前缀执行反向调整。
// 补偿失败只记录和计数，不自动重试：破坏性写入重试有二次扣减风险。
func (s *StockService) compensate(ctx context.Context, applied []StockItem, direction Direction) {
	if len(applied) == 0 {
		return
	}
	GetMonitor().RecordCompensationRun()

	reverse := DirectionRestore
	if direction == DirectionRestore {
		reverse = DirectionReduce
	}
	for _, it := range applied {
		if _, err := s.repo.AdjustStock(ctx, it.ProductID, it.Selector, it.Quantity, reverse == DirectionReduce); err != nil {
			GetMonitor().RecordCompensationInconsistency()
			log.Printf("[SEVERE] 库存补偿失败 product=%d selector=%s qty=%d direction=%s: %v",
				it.ProductID, it.Selector, it.Quantity, reverse, err)
			continue
		}
		s.refreshAggregateCache(ctx, it.ProductID)
	}
}

// refreshAggregateCache 把最新总库存写入 Redis，失败不影响主流程
func (s *StockService) refreshAggregateCache(ctx context.Context, productID int64) {
	if s.redis == nil {
		return
	}
	total, err := s.repo.RecomputeAggregate(ctx, productID)
	if err != nil {
		GetMonitor().RecordRedisError()
		return
	}
	s.cacheAggregate(ctx, productID, total)
}

func (s *StockService) cacheAggregate(_ context.Context, productID, total int64) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf(redisAggregateKey, productID)
	if err := s.redis.Do(radix.FlatCmd(nil, "SET", key, total)); err != nil {
		GetMonitor().RecordRedisError()
		log.Printf("failed to cache aggregate for product %d: %v", productID, err)
	}
}

// CachedAggregate 读缓存的总库存；未命中返回 miss=false，调用方自行回源
func (s *StockService) CachedAggregate(ctx context.Context, productID int64) (int64, bool) {
	if s.redis == nil {
		return 0, false
	}
	key := fmt.Sprintf(redisAggregateKey, productID)
	var raw string
	if err := s.redis.Do(radix.Cmd(&raw, "GET", key)); err != nil || raw == "" {
		return 0, false
	}
	var total int64
	if _, err := fmt.Sscanf(raw, "%d", &total); err != nil {
		return 0, false
	}
	return total, true
}

func validateItems(items []StockItem, direction Direction) error {
	if !direction.Valid() {
		return validationErrorf("未知的调整方向 %q", direction)
	}
	if len(items) == 0 {
		return validationErrorf("调整列表不能为空")
	}
	for i, it := range items {
		if it.ProductID <= 0 {
			return validationErrorf("第 %d 条的商品 ID 不合法", i+1)
		}
		if it.Quantity <= 0 {
			return validationErrorf("第 %d 条的数量必须为正整数", i+1)
		}
		if !it.Selector.Valid() {
			return validationErrorf("第 %d 条必须恰好指定颜色或附加选项之一", i+1)
		}
	}
	return nil
}

// coalesce 合并重复的（商品, 选项）条目，保持首次出现的位置
func coalesce(items []StockItem) []StockItem {
	type key struct {
		productID int64
		selector  string
		isColor   bool
	}
	index := make(map[key]int, len(items))
	merged := make([]StockItem, 0, len(items))
	for _, it := range items {
		k := key{it.ProductID, it.Selector.String(), it.Selector.ColorName != ""}
		if pos, ok := index[k]; ok {
			merged[pos].Quantity += it.Quantity
			continue
		}
		index[k] = len(merged)
		merged = append(merged, it)
	}
	return merged
}
