package infrastructure

import (
	"fmt"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// corruptRow 表示数据库中出现了无法识别的枚举值
func corruptRow(table string, id uint, field, value string) error {
	return &domain.StorageError{
		Op:  "decode " + table,
		Err: fmt.Errorf("row %d has unknown %s %q", id, field, value),
	}
}

// ToDomainBalance 将数据库模型转换为领域模型
func ToDomainBalance(m *UserBalanceModel) *domain.UserBalance {
	return &domain.UserBalance{
		UserID:          m.UserID,
		Points:          m.Points,
		RecoveryBalance: m.RecoveryBalance,
		Version:         m.Version,
		UpdatedAt:       m.UpdatedAt,
	}
}

func ToDomainLedgerRecord(m *LedgerRecordModel) (*domain.LedgerRecord, error) {
	kind, ok := domain.ParseRecordKind(m.Kind)
	if !ok {
		return nil, corruptRow("ledger_records", m.ID, "kind", m.Kind)
	}
	return &domain.LedgerRecord{
		ID:          int64(m.ID),
		UserID:      m.UserID,
		Kind:        kind,
		Points:      m.Points,
		Amount:      m.Amount,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}, nil
}

func ToDomainGift(m *GiftModel) (*domain.Gift, error) {
	t, ok := domain.ParseGiftType(m.Type)
	if !ok {
		return nil, corruptRow("gifts", m.ID, "type", m.Type)
	}
	return &domain.Gift{
		ID:               int64(m.ID),
		Name:             m.Name,
		Description:      m.Description,
		ImageURL:         m.ImageURL,
		PointsRequired:   m.PointsRequired,
		RecoveryRequired: m.RecoveryRequired,
		Type:             t,
		Stock:            m.Stock,
		IsLimited:        m.IsLimited,
		CreatedAt:        m.CreatedAt,
	}, nil
}

// FromDomainGift 用于插入新礼品
func FromDomainGift(g *domain.Gift) *GiftModel {
	return &GiftModel{
		ID:               uint(g.ID),
		Name:             g.Name,
		Description:      g.Description,
		ImageURL:         g.ImageURL,
		PointsRequired:   g.PointsRequired,
		RecoveryRequired: g.RecoveryRequired,
		Type:             string(g.Type),
		Stock:            g.Stock,
		IsLimited:        g.IsLimited,
	}
}

func ToDomainExchangeRecord(m *ExchangeRecordModel) (*domain.ExchangeRecord, error) {
	status, ok := domain.ParseExchangeStatus(m.Status)
	if !ok {
		return nil, corruptRow("exchange_records", m.ID, "status", m.Status)
	}
	giftType, ok := domain.ParseGiftType(m.GiftType)
	if !ok {
		return nil, corruptRow("exchange_records", m.ID, "gift_type", m.GiftType)
	}
	return &domain.ExchangeRecord{
		ID:              int64(m.ID),
		UserID:          m.UserID,
		GiftID:          m.GiftID,
		GiftName:        m.GiftName,
		GiftType:        giftType,
		PointsUsed:      m.PointsUsed,
		RecoveryUsed:    m.RecoveryUsed,
		ShippingAddress: m.ShippingAddress,
		TrackingNumber:  m.TrackingNumber,
		Status:          status,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func FromDomainExchangeRecord(r *domain.ExchangeRecord) *ExchangeRecordModel {
	return &ExchangeRecordModel{
		ID:              uint(r.ID),
		UserID:          r.UserID,
		GiftID:          r.GiftID,
		GiftName:        r.GiftName,
		GiftType:        string(r.GiftType),
		PointsUsed:      r.PointsUsed,
		RecoveryUsed:    r.RecoveryUsed,
		ShippingAddress: r.ShippingAddress,
		TrackingNumber:  r.TrackingNumber,
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func ToDomainMedal(m *MedalModel) (*domain.Medal, error) {
	rarity, ok := domain.ParseRarity(m.Rarity)
	if !ok {
		return nil, corruptRow("medals", m.ID, "rarity", m.Rarity)
	}
	return &domain.Medal{
		ID:              int64(m.ID),
		Name:            m.Name,
		Description:     m.Description,
		Icon:            m.Icon,
		Rarity:          rarity,
		UnlockCondition: m.UnlockCondition,
		TargetValue:     m.TargetValue,
		CreatedAt:       m.CreatedAt,
	}, nil
}

func FromDomainMedal(m *domain.Medal) *MedalModel {
	return &MedalModel{
		ID:              uint(m.ID),
		Name:            m.Name,
		Description:     m.Description,
		Icon:            m.Icon,
		Rarity:          string(m.Rarity),
		UnlockCondition: m.UnlockCondition,
		TargetValue:     m.TargetValue,
	}
}

func ToDomainMedalProgress(m *UserMedalModel) *domain.UserMedalProgress {
	return &domain.UserMedalProgress{
		UserID:     m.UserID,
		MedalID:    m.MedalID,
		Progress:   m.Progress,
		IsUnlocked: m.IsUnlocked,
		UnlockedAt: m.UnlockedAt,
	}
}

func ToDomainLevel(m *UserLevelModel) *domain.UserLevel {
	return &domain.UserLevel{
		UserID:    m.UserID,
		Level:     m.Level,
		Exp:       m.Exp,
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
	}
}
