package redis

import (
	"log"
	"sync"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
)

var (
	client radix.Client
	once   sync.Once
)

// Init 建立 Redis 连接池。缓存是可降级依赖，连不上只告警不退出，
// 调用方拿到 nil client 时自行回源数据库。
func Init(cfg *config.RedisConfig) radix.Client {
	once.Do(func() {
		size := cfg.PoolSize
		if size <= 0 {
			size = 10
		}
		pool, err := radix.NewPool("tcp", cfg.Addr, size)
		if err != nil {
			log.Printf("[WARN] redis unavailable at %s, running without cache: %v", cfg.Addr, err)
			return
		}
		client = pool
	})
	return client
}

// Client 获取全局客户端，未初始化或连接失败时为 nil
func Client() radix.Client {
	return client
}
