package main

import (
	"context"
	"log"
	"time"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/infra/redis"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/repository/mysql"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/service"
)

const checkInterval = 5 * time.Minute // 每5分钟检查一次

// 总库存一致性检查服务。
// 正常情况下 aggregate_quantity 由写路径在同一事务内维护，这里是兜底：
// 周期性重算一遍（幂等），发现漂移就修正并刷新缓存。
func main() {
	cfg := config.FromEnv()

	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	productRepo := mysql.NewProductRepository(db)
	stockSvc := service.NewStockService(productRepo, redisClient)

	log.Println("库存一致性检查服务启动...")
	log.Printf("检查间隔: %v", checkInterval)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	// 立即执行一次
	checkAndRepair(context.Background(), productRepo, stockSvc)

	// 定时执行
	for range ticker.C {
		checkAndRepair(context.Background(), productRepo, stockSvc)
	}
}

func checkAndRepair(ctx context.Context, productRepo product.Repository, stockSvc *service.StockService) {
	log.Println("开始检查总库存一致性...")

	products, err := productRepo.ListAll(ctx)
	if err != nil {
		log.Printf("获取商品列表失败: %v", err)
		return
	}

	driftCount := 0
	for _, p := range products {
		before := p.AggregateQuantity
		after, err := stockSvc.RecomputeAggregate(ctx, p.ID)
		if err != nil {
			log.Printf("商品 %d 重算失败: %v", p.ID, err)
			continue
		}
		if after != before {
			driftCount++
			log.Printf("商品 %d 总库存漂移: %d -> %d（已修正）", p.ID, before, after)
		}
	}

	log.Printf("检查完成: 共 %d 个商品, %d 个漂移已修正", len(products), driftCount)
}
