package main

import (
	"encoding/json"
	"log"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/infra/mq"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/service"
)

// 通知 worker：消费订单事件并投递站内信/邮件。
// 通知是 fire-and-forget 的下游，这里失败只记日志重新入队，
// 绝不反向影响订单状态。
func main() {
	cfg := config.FromEnv()

	mqConn := mq.Init(&cfg.RabbitMQ)
	if mqConn == nil {
		log.Fatal("rabbitmq is required for the notify worker")
	}

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(service.NotifyQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(service.NotifyQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	log.Println("notify worker started, waiting for messages...")

	for d := range msgs {
		var m service.NotifyMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			log.Printf("invalid message: %v", err)
			_ = d.Nack(false, false) // 消息体损坏，丢弃
			continue
		}

		if err := deliver(&m); err != nil {
			log.Printf("deliver %s for order %d failed: %v", m.Event, m.OrderID, err)
			_ = d.Nack(false, true) // 投递失败重新入队
			continue
		}
		_ = d.Ack(false)
	}
}

// deliver 实际投递。邮件/短信通道还没接，当前先落日志留痕。
func deliver(m *service.NotifyMessage) error {
	switch m.Event {
	case service.NotifyOrderCreated:
		log.Printf("[notify] 用户 %d 的订单 #%d 已创建 (event=%s)", m.UserID, m.OrderID, m.EventID)
	case service.NotifyOrderShipped:
		log.Printf("[notify] 用户 %d 的订单 #%d 已发货 (event=%s)", m.UserID, m.OrderID, m.EventID)
	case service.NotifyOrderConfirmed:
		log.Printf("[notify] 用户 %d 的订单 #%d 已确认收货 (event=%s)", m.UserID, m.OrderID, m.EventID)
	case service.NotifyOrderCancelled:
		log.Printf("[notify] 用户 %d 的订单 #%d 已取消 (event=%s)", m.UserID, m.OrderID, m.EventID)
	default:
		log.Printf("[notify] 未知事件 %s，忽略", m.Event)
	}
	return nil
}
