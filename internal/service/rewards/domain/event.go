package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeCreatedEvent 兑换提交后发往履约方的事件
type ExchangeCreatedEvent struct {
	EventID         string          `json:"eventId"`
	ExchangeID      int64           `json:"exchangeId"`
	UserID          int64           `json:"userId"`
	GiftID          int64           `json:"giftId"`
	GiftName        string          `json:"giftName"`
	GiftType        GiftType        `json:"giftType"`
	PointsUsed      int64           `json:"pointsUsed"`
	RecoveryUsed    decimal.Decimal `json:"recoveryUsed"`
	ShippingAddress *string         `json:"shippingAddress,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// BalanceAdjustmentEvent 外部协作方（发帖奖励、充值、提现）发来的余额调整
type BalanceAdjustmentEvent struct {
	EventID     string          `json:"eventId"`
	UserID      int64           `json:"userId"`
	Kind        RecordKind      `json:"kind"`
	Points      int64           `json:"points"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ExchangeStatusEvent 履约后台推进兑换状态（发货、签收、取消）
type ExchangeStatusEvent struct {
	EventID        string         `json:"eventId"`
	ExchangeID     int64          `json:"exchangeId"`
	Status         ExchangeStatus `json:"status"`
	TrackingNumber *string        `json:"trackingNumber,omitempty"`
}

// MedalProgressEvent 由产生业务行为的服务（发帖、签到等）发来的勋章进度
type MedalProgressEvent struct {
	EventID string `json:"eventId"`
	UserID  int64  `json:"userId"`
	MedalID int64  `json:"medalId"`
	Delta   int64  `json:"delta"`
}
