package mq

import (
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
)

const dialAttempts = 3

var (
	conn *amqp.Connection
	once sync.Once
)

// Init 建立 RabbitMQ 连接，启动期 broker 可能还没就绪，带退避重试几次。
// 通知链路整体是 fire-and-forget，最终连不上也不阻塞服务启动。
func Init(cfg *config.RabbitMQConfig) *amqp.Connection {
	once.Do(func() {
		var err error
		for i := 1; i <= dialAttempts; i++ {
			conn, err = amqp.Dial(cfg.URL)
			if err == nil {
				return
			}
			log.Printf("[WARN] rabbitmq dial attempt %d/%d failed: %v", i, dialAttempts, err)
			time.Sleep(time.Duration(i) * time.Second)
		}
		log.Printf("[WARN] rabbitmq unavailable, order notifications disabled")
		conn = nil
	})
	return conn
}

// Conn 获取全局连接，不可用时为 nil
func Conn() *amqp.Connection {
	return conn
}
