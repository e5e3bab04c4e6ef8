package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// NotifyQueue 订单通知队列，cmd/notify-worker 消费
const NotifyQueue = "order_notify_queue"

// 通知事件类型
const (
	NotifyOrderCreated   = "order.created"
	NotifyOrderShipped   = "order.shipped"
	NotifyOrderConfirmed = "order.confirmed"
	NotifyOrderCancelled = "order.cancelled"
)

// NotifyMessage 投递给通知 worker 的消息体
type NotifyMessage struct {
	EventID string    `json:"event_id"`
	Event   string    `json:"event"`
	OrderID int64     `json:"order_id"`
	UserID  int64     `json:"user_id"`
	At      time.Time `json:"at"`
}

// Notifier 通知协作方：fire-and-forget，失败绝不阻塞或回滚已提交的状态变更
type Notifier interface {
	OrderEvent(ctx context.Context, event string, orderID, userID int64)
}

// MQNotifier 基于 RabbitMQ 的通知实现
type MQNotifier struct {
	conn *amqp.Connection
}

// NewMQNotifier 创建通知发布器
func NewMQNotifier(conn *amqp.Connection) *MQNotifier {
	return &MQNotifier{conn: conn}
}

// OrderEvent 发布订单事件。任何错误只记日志和计数。
func (n *MQNotifier) OrderEvent(ctx context.Context, event string, orderID, userID int64) {
	if n == nil || n.conn == nil {
		return
	}
	ch, err := n.conn.Channel()
	if err != nil {
		GetMonitor().RecordMQError()
		log.Printf("notify: open channel failed: %v", err)
		return
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(NotifyQueue, true, false, false, false, nil); err != nil {
		GetMonitor().RecordMQError()
		log.Printf("notify: declare queue failed: %v", err)
		return
	}

	body, err := json.Marshal(&NotifyMessage{
		EventID: uuid.NewString(),
		Event:   event,
		OrderID: orderID,
		UserID:  userID,
		At:      time.Now(),
	})
	if err != nil {
		log.Printf("notify: marshal failed: %v", err)
		return
	}

	err = ch.PublishWithContext(
		ctx,
		"",
		NotifyQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		GetMonitor().RecordMQError()
		log.Printf("notify: publish %s for order %d failed: %v", event, orderID, err)
	}
}
