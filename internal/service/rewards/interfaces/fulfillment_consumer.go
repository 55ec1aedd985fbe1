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
	// ExchangeStatusTopic 履约后台发布发货、签收、取消
	ExchangeStatusTopic = "rewards.exchange-status"
	// MedalProgressTopic 业务服务发布勋章进度
	MedalProgressTopic = "rewards.medal-progress"
	// FulfillmentDLT 两个 topic 共用的死信队列
	FulfillmentDLT = "rewards.fulfillment.dlt"
)

// FulfillmentTopics 返回 FulfillmentConsumerAdapter 订阅的 topic
func FulfillmentTopics() []string {
	return []string{ExchangeStatusTopic, MedalProgressTopic}
}

// FulfillmentApplier 是内部协作方驱动的应用服务能力，不经过用户路由
type FulfillmentApplier interface {
	AdvanceExchange(ctx context.Context, exchangeID int64, to domain.ExchangeStatus, trackingNumber *string) (*application.ExchangeRecordResponse, error)
	RecordMedalProgress(ctx context.Context, userID, medalID, delta int64) (*application.MedalResponse, error)
}

// FulfillmentConsumerAdapter 监听兑换状态和勋章进度消息
type FulfillmentConsumerAdapter struct {
	reader  messageReader
	dlt     mq.MessageWriter
	appSvc  FulfillmentApplier
	backoff time.Duration
	wg      sync.WaitGroup
}

func NewFulfillmentConsumerAdapter(reader *kafka.Reader, dlt *kafka.Writer, appSvc FulfillmentApplier) *FulfillmentConsumerAdapter {
	a := &FulfillmentConsumerAdapter{reader: reader, appSvc: appSvc, backoff: 200 * time.Millisecond}
	if dlt != nil {
		a.dlt = dlt
	}
	return a
}

func (a *FulfillmentConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		consumeLoop(ctx, a.reader, "fulfillment", a.processMessage)
	}()
}

func (a *FulfillmentConsumerAdapter) Stop() error {
	err := a.reader.Close()
	a.wg.Wait()
	return err
}

// processMessage 按 topic 分发
func (a *FulfillmentConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parentCtx, &headerCarrier)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "consumer.Fulfillment")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)

	var handle func() error
	switch msg.Topic {
	case ExchangeStatusTopic:
		var event domain.ExchangeStatusEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			deadLetter(ctx, a.dlt, msg, domain.InvalidArgument("malformed exchange status: %v", err))
			return
		}
		to, ok := domain.ParseExchangeStatus(string(event.Status))
		if !ok {
			deadLetter(ctx, a.dlt, msg, domain.InvalidArgument("unknown status %q", event.Status))
			return
		}
		handle = func() error {
			_, err := a.appSvc.AdvanceExchange(ctx, event.ExchangeID, to, event.TrackingNumber)
			return err
		}
	case MedalProgressTopic:
		var event domain.MedalProgressEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			deadLetter(ctx, a.dlt, msg, domain.InvalidArgument("malformed medal progress: %v", err))
			return
		}
		handle = func() error {
			_, err := a.appSvc.RecordMedalProgress(ctx, event.UserID, event.MedalID, event.Delta)
			return err
		}
	default:
		deadLetter(ctx, a.dlt, msg, domain.InvalidArgument("unexpected topic %q", msg.Topic))
		return
	}

	err := retryProcess(ctx, a.backoff, handle)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		deadLetter(ctx, a.dlt, msg, err)
		return
	}
	logger.Ctx(ctx).Info().Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("fulfillment message applied")
}
