package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wyfcoding/tradingcore/pkg/db"
	"github.com/wyfcoding/tradingcore/pkg/mq"
)

// OrderEventsTopic 订单事件统一投递的 Kafka 主题
const OrderEventsTopic = "tradingcore.order.events"

// OutboxMessage outbox 表记录，与业务写入共享同一事务
type OutboxMessage struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	EventType  string    `gorm:"type:varchar(100);index"`
	MessageKey string    `gorm:"type:varchar(100)"`
	Payload    string    `gorm:"type:text"`
	Status     string    `gorm:"type:varchar(20);index;default:'pending'"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "order_outbox_messages"
}

// OutboxEventPublisher 实现 domain.EventPublisher，使用 Outbox 模式：
// 事件随业务数据同事务落库，由 relay 异步投递到 Kafka。
type OutboxEventPublisher struct {
	db *gorm.DB
}

// NewOutboxEventPublisher 创建发布器
func NewOutboxEventPublisher(gormDB *gorm.DB) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: gormDB}
}

// Publish 在当前事务内登记事件
func (p *OutboxEventPublisher) Publish(ctx context.Context, eventType string, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	message := OutboxMessage{
		ID:         uuid.NewString(),
		EventType:  eventType,
		MessageKey: key,
		Payload:    string(data),
		Status:     "pending",
	}

	tx := db.TxFromContext(ctx, p.db)
	return tx.WithContext(ctx).Create(&message).Error
}

// EventEnvelope outbox 消息投递到 Kafka 的统一信封
type EventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// Relay 将待投递消息批量发送到 Kafka 并标记完成。
// 投递失败的消息保持 pending，下一轮重试，至少一次语义。
func (p *OutboxEventPublisher) Relay(ctx context.Context, producer *mq.KafkaProducer, topic string, batchSize int) (int, error) {
	var messages []OutboxMessage
	err := p.db.WithContext(ctx).
		Where("status = ?", "pending").
		Order("created_at").
		Limit(batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, message := range messages {
		envelope := EventEnvelope{
			EventID:   message.ID,
			EventType: message.EventType,
			Payload:   json.RawMessage(message.Payload),
		}
		if err := producer.SendMessage(ctx, topic, message.MessageKey, envelope); err != nil {
			return sent, err
		}
		if err := p.db.WithContext(ctx).Model(&OutboxMessage{}).
			Where("id = ?", message.ID).
			Update("status", "sent").Error; err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// PendingCount 当前待投递消息数
func (p *OutboxEventPublisher) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("status = ?", "pending").Count(&count).Error
	return count, err
}

// Cleanup 清理投递完成的历史消息
func (p *OutboxEventPublisher) Cleanup(ctx context.Context, before time.Time) error {
	return p.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", "sent", before).
		Delete(&OutboxMessage{}).Error
}
