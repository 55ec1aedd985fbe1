package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/pkg/mq"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

const (
	// ConsumerGroup 消费组
	ConsumerGroup = "growth-service"

	maxProcessAttempts = 3
	fetchRetryDelay    = time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// consumeLoop 拉取消息、交给 handle 处理后提交 offset，直到 ctx 取消
func consumeLoop(ctx context.Context, reader messageReader, name string, handle func(context.Context, kafka.Message)) {
	logger.Ctx(ctx).Info().Str("consumer", name).Msg("consumer started")
	for {
		// 使用FetchMessage而不是ReadMessage，处理完成后再提交Offset
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("consumer", name).Msg("consumer shutting down")
				return
			}
			logger.Ctx(ctx).Error().Err(err).Str("consumer", name).Msg("could not fetch message, retrying")
			// 避免快速失败循环
			select {
			case <-time.After(fetchRetryDelay):
				continue
			case <-ctx.Done():
				logger.Ctx(ctx).Info().Str("consumer", name).Msg("consumer shutting down")
				return
			}
		}

		handle(ctx, msg)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// retryProcess 执行 fn，冲突和存储错误按线性退避最多尝试 maxProcessAttempts 次
func retryProcess(ctx context.Context, backoff time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxProcessAttempts; attempt++ {
		err = fn()
		if err == nil || !retryable(err) || attempt == maxProcessAttempts {
			return err
		}
		logger.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("message processing failed, retrying")
		select {
		case <-time.After(backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrConcurrencyConflict) || errors.Is(err, domain.ErrStorage)
}

// deadLetter 转发到死信队列，dlt 为空时只记录日志
func deadLetter(ctx context.Context, dlt mq.MessageWriter, msg kafka.Message, cause error) {
	logger.Ctx(ctx).Error().Err(cause).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("message moved to dead letter topic")
	if dlt == nil {
		return
	}
	if err := mq.ForwardToDLT(ctx, dlt, msg, cause); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to forward message to dead letter topic")
	}
}
