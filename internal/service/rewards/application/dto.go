package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// Adjustment 是外部协作方发起的余额调整请求
type Adjustment struct {
	UserID      int64
	Kind        domain.RecordKind
	Points      int64
	Amount      decimal.Decimal
	Description string
}

// BalanceResponse 是余额查询的响应体
type BalanceResponse struct {
	UserID          int64           `json:"user_id"`
	Points          int64           `json:"points"`
	RecoveryBalance decimal.Decimal `json:"recovery_balance"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func newBalanceResponse(b *domain.UserBalance) *BalanceResponse {
	return &BalanceResponse{
		UserID:          b.UserID,
		Points:          b.Points,
		RecoveryBalance: b.RecoveryBalance,
		UpdatedAt:       b.UpdatedAt,
	}
}

// LotteryResult 是一次抽奖的结果
type LotteryResult struct {
	PrizeName   string          `json:"prize_name"`
	PrizeAmount decimal.Decimal `json:"prize_amount"`
	NewBalance  decimal.Decimal `json:"new_balance"`
}

// LedgerRecordResponse 是一条流水的响应体
type LedgerRecordResponse struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Kind        domain.RecordKind `json:"kind"`
	Points      int64             `json:"points"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newLedgerRecordResponses(records []*domain.LedgerRecord) []LedgerRecordResponse {
	out := make([]LedgerRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, LedgerRecordResponse{
			ID:          r.ID,
			UserID:      r.UserID,
			Kind:        r.Kind,
			Points:      r.Points,
			Amount:      r.Amount,
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}

// GiftResponse 是礼品目录中的一项
type GiftResponse struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ImageURL         string          `json:"image_url"`
	PointsRequired   int64           `json:"points_required"`
	RecoveryRequired decimal.Decimal `json:"recovery_required"`
	Type             domain.GiftType `json:"type"`
	Stock            int64           `json:"stock"`
	IsLimited        bool            `json:"is_limited"`
}

// ExchangeRecordResponse 是兑换记录的响应体
type ExchangeRecordResponse struct {
	ID              int64                 `json:"id"`
	UserID          int64                 `json:"user_id"`
	GiftID          int64                 `json:"gift_id"`
	GiftName        string                `json:"gift_name"`
	PointsUsed      int64                 `json:"points_used"`
	RecoveryUsed    decimal.Decimal       `json:"recovery_used"`
	ShippingAddress *string               `json:"shipping_address"`
	TrackingNumber  *string               `json:"tracking_number"`
	Status          domain.ExchangeStatus `json:"status"`
	CreatedAt       time.Time             `json:"created_at"`
}

func newExchangeRecordResponse(r *domain.ExchangeRecord) ExchangeRecordResponse {
	return ExchangeRecordResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		GiftID:          r.GiftID,
		GiftName:        r.GiftName,
		PointsUsed:      r.PointsUsed,
		RecoveryUsed:    r.RecoveryUsed,
		ShippingAddress: r.ShippingAddress,
		TrackingNumber:  r.TrackingNumber,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
	}
}

// GrowthSummary 等级、经验、积分、回血金和已解锁勋章数的汇总
type GrowthSummary struct {
	Level               int             `json:"level"`
	Exp                 int64           `json:"exp"`
	Points              int64           `json:"points"`
	RecoveryBalance     decimal.Decimal `json:"recovery_balance"`
	UnlockedMedalsCount int64           `json:"unlocked_medals_count"`
}

// LevelResponse 是等级查询的响应体
type LevelResponse struct {
	UserID      int64 `json:"user_id"`
	Level       int   `json:"level"`
	Exp         int64 `json:"exp"`
	NextLevelAt int64 `json:"next_level_exp"`
}

// MedalResponse 是勋章与当前用户进度的合并视图
type MedalResponse struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Icon            string        `json:"icon"`
	Rarity          domain.Rarity `json:"rarity"`
	UnlockCondition string        `json:"unlock_condition"`
	TargetValue     *int64        `json:"target_value"`
	Progress        int64         `json:"progress"`
	IsUnlocked      bool          `json:"is_unlocked"`
	UnlockedAt      *time.Time    `json:"unlocked_at"`
}

func newMedalResponse(m domain.MedalWithProgress) MedalResponse {
	return MedalResponse{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		Icon:            m.Icon,
		Rarity:          m.Rarity,
		UnlockCondition: m.UnlockCondition,
		TargetValue:     m.TargetValue,
		Progress:        m.Progress,
		IsUnlocked:      m.IsUnlocked,
		UnlockedAt:      m.UnlockedAt,
	}
}
