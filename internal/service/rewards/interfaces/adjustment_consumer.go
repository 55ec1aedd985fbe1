package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/pkg/mq"
	"github.com/haomehaode/kuileme/internal/service/rewards/application"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

const (
	// BalanceAdjustmentTopic 外部协作方发布余额调整的 topic
	BalanceAdjustmentTopic = "rewards.balance-adjustments"
	// BalanceAdjustmentDLT 无法处理的调整消息转发到这里
	BalanceAdjustmentDLT = "rewards.balance-adjustments.dlt"
)

// AdjustmentApplier 是消费者驱动的应用服务能力
type AdjustmentApplier interface {
	ApplyAdjustment(ctx context.Context, adj application.Adjustment) (*application.BalanceResponse, error)
}

// AdjustmentConsumerAdapter 是一个驱动适配器，它监听余额调整消息并驱动应用服务。
type AdjustmentConsumerAdapter struct {
	reader  messageReader
	dlt     mq.MessageWriter // 可以为空，为空时只记录日志
	appSvc  AdjustmentApplier
	backoff time.Duration
	wg      sync.WaitGroup
}

// NewAdjustmentConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewAdjustmentConsumerAdapter(reader *kafka.Reader, dlt *kafka.Writer, appSvc AdjustmentApplier) *AdjustmentConsumerAdapter {
	a := &AdjustmentConsumerAdapter{reader: reader, appSvc: appSvc, backoff: 200 * time.Millisecond}
	if dlt != nil {
		a.dlt = dlt
	}
	return a
}

// Start 开始监听Kafka主题，ctx 取消时退出。
func (a *AdjustmentConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		consumeLoop(ctx, a.reader, "balance-adjustments", a.processMessage)
	}()
}

// Stop 关闭 reader 并等待消费循环退出，调用前应先取消 Start 的 ctx。
func (a *AdjustmentConsumerAdapter) Stop() error {
	err := a.reader.Close()
	a.wg.Wait()
	return err
}

// processMessage 反序列化消息并调用应用服务；
// 冲突和存储错误有限次重试，其余失败转发到死信队列。
func (a *AdjustmentConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parentCtx, &headerCarrier)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "consumer.BalanceAdjustment")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", BalanceAdjustmentTopic),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)

	var event domain.BalanceAdjustmentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		deadLetter(ctx, a.dlt, msg, domain.InvalidArgument("malformed adjustment: %v", err))
		return
	}
	adj := application.Adjustment{
		UserID:      event.UserID,
		Kind:        event.Kind,
		Points:      event.Points,
		Amount:      event.Amount,
		Description: event.Description,
	}

	err := retryProcess(ctx, a.backoff, func() error {
		_, err := a.appSvc.ApplyAdjustment(ctx, adj)
		return err
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		deadLetter(ctx, a.dlt, msg, err)
		return
	}
	logger.Ctx(ctx).Info().Str("event_id", event.EventID).Int64("user_id", event.UserID).Msg("adjustment applied")
}
