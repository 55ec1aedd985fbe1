package port

import (
	"context"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// EventPublisher 是兑换事件的出站端口。
type EventPublisher interface {
	// PublishExchangeCreated 在兑换提交后通知履约方
	PublishExchangeCreated(ctx context.Context, record *domain.ExchangeRecord) error
}
