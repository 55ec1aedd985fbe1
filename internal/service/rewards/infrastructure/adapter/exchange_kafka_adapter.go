package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/haomehaode/kuileme/internal/pkg/mq"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// ExchangeCreatedTopic 兑换创建事件的 topic
const ExchangeCreatedTopic = "rewards.exchange-created"

type messageWriter interface {
	mq.MessageWriter
	Close() error
}

// ExchangeKafkaAdapter 实现了 port.EventPublisher 接口。
type ExchangeKafkaAdapter struct {
	writer messageWriter
}

// NewExchangeKafkaAdapter 创建兑换事件生产者
func NewExchangeKafkaAdapter(writer *kafka.Writer) *ExchangeKafkaAdapter {
	return &ExchangeKafkaAdapter{writer: writer}
}

// PublishExchangeCreated 以用户 ID 为 key 发送事件，同一用户的事件保持顺序
func (a *ExchangeKafkaAdapter) PublishExchangeCreated(ctx context.Context, record *domain.ExchangeRecord) error {
	event := domain.ExchangeCreatedEvent{
		EventID:         uuid.NewString(),
		ExchangeID:      record.ID,
		UserID:          record.UserID,
		GiftID:          record.GiftID,
		GiftName:        record.GiftName,
		GiftType:        record.GiftType,
		PointsUsed:      record.PointsUsed,
		RecoveryUsed:    record.RecoveryUsed,
		ShippingAddress: record.ShippingAddress,
		CreatedAt:       record.CreatedAt,
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal exchange created event: %w", err)
	}

	key := []byte(strconv.FormatInt(record.UserID, 10))
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, key, eventBytes)
}

// Close 关闭底层的Kafka writer。
func (a *ExchangeKafkaAdapter) Close() error {
	return a.writer.Close()
}
