package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeStatus 兑换记录的状态
type ExchangeStatus string

const (
	ExchangeStatusPending   ExchangeStatus = "pending"
	ExchangeStatusShipped   ExchangeStatus = "shipped"
	ExchangeStatusCompleted ExchangeStatus = "completed"
	ExchangeStatusCancelled ExchangeStatus = "cancelled"
)

// exchangeTransitions 定义了合法的状态流转
var exchangeTransitions = map[ExchangeStatus][]ExchangeStatus{
	ExchangeStatusPending: {ExchangeStatusShipped, ExchangeStatusCancelled},
	ExchangeStatusShipped: {ExchangeStatusCompleted},
}

func ParseExchangeStatus(s string) (ExchangeStatus, bool) {
	switch st := ExchangeStatus(s); st {
	case ExchangeStatusPending, ExchangeStatusShipped, ExchangeStatusCompleted, ExchangeStatusCancelled:
		return st, true
	}
	return "", false
}

// CanTransitionTo 判断是否允许从当前状态流转到 to
func (s ExchangeStatus) CanTransitionTo(to ExchangeStatus) bool {
	for _, next := range exchangeTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Gift 可兑换的礼品
type Gift struct {
	ID               int64
	Name             string
	Description      string
	ImageURL         string
	PointsRequired   int64
	RecoveryRequired decimal.Decimal
	Type             GiftType
	Stock            int64
	IsLimited        bool
	CreatedAt        time.Time
}

// IsFree 积分和回血金都不需要的礼品不产生扣款流水
func (g *Gift) IsFree() bool {
	return g.PointsRequired == 0 && g.RecoveryRequired.IsZero()
}

// ExchangeRecord 一次兑换的记录
type ExchangeRecord struct {
	ID              int64
	UserID          int64
	GiftID          int64
	GiftName        string
	GiftType        GiftType
	PointsUsed      int64
	RecoveryUsed    decimal.Decimal
	ShippingAddress *string
	TrackingNumber  *string
	Status          ExchangeStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Advance 按状态机推进兑换记录
func (r *ExchangeRecord) Advance(to ExchangeStatus, trackingNumber *string) error {
	if !r.Status.CanTransitionTo(to) {
		return &TransitionError{From: r.Status, To: to}
	}
	if to == ExchangeStatusShipped && r.GiftType == GiftTypePhysical {
		if trackingNumber == nil || *trackingNumber == "" {
			return InvalidArgument("tracking number is required to ship a physical gift")
		}
	}
	if trackingNumber != nil && *trackingNumber != "" {
		r.TrackingNumber = trackingNumber
	}
	r.Status = to
	return nil
}

// TransitionError 非法的状态流转
type TransitionError struct {
	From, To ExchangeStatus
}

func (e *TransitionError) Error() string {
	return "cannot move exchange from " + string(e.From) + " to " + string(e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
