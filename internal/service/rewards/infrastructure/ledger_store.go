package infrastructure

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// GormLedgerStore 是 domain.LedgerStore 的 GORM 实现
type GormLedgerStore struct {
	db   *gorm.DB
	inTx bool
	uow  *GormUnitOfWork
}

// GetOrCreateBalance 不存在时插入零余额，已存在时不做任何修改
func (s *GormLedgerStore) GetOrCreateBalance(ctx context.Context, userID int64) (*domain.UserBalance, error) {
	m, err := s.ensureBalance(ctx, s.db.WithContext(ctx), userID, false)
	if err != nil {
		return nil, err
	}
	return ToDomainBalance(m), nil
}

func (s *GormLedgerStore) ensureBalance(ctx context.Context, db *gorm.DB, userID int64, lock bool) (*UserBalanceModel, error) {
	seed := &UserBalanceModel{UserID: userID, RecoveryBalance: decimal.Zero}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(seed).Error
	if err != nil {
		return nil, classify("ensure balance", err)
	}

	var m UserBalanceModel
	q := db
	if lock {
		q = s.uow.forUpdate(db)
	}
	if err := q.Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, classify("load balance", err)
	}
	return &m, nil
}

// ApplyDelta 实现 domain.LedgerStore。
// 不在事务中调用时会自己开启一个事务；在事务仓储上调用时加入调用方的事务。
func (s *GormLedgerStore) ApplyDelta(ctx context.Context, userID int64, delta domain.Delta) (*domain.UserBalance, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}
	if !s.inTx {
		var out *domain.UserBalance
		err := s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
			b, err := repos.Ledger.ApplyDelta(ctx, userID, delta)
			out = b
			return err
		})
		return out, err
	}

	db := s.db.WithContext(ctx)
	m, err := s.ensureBalance(ctx, db, userID, true)
	if err != nil {
		return nil, err
	}

	current := ToDomainBalance(m)
	if pts, amt := current.Shortfall(delta.Points, delta.Amount); pts > 0 || amt.IsPositive() {
		return nil, &domain.InsufficientFundsError{PointsShortfall: pts, AmountShortfall: amt}
	}
	if err := current.CheckCredit(delta.Points); err != nil {
		return nil, err
	}

	now := time.Now()
	next := &domain.UserBalance{
		UserID:          userID,
		Points:          current.Points + delta.Points,
		RecoveryBalance: current.RecoveryBalance.Add(delta.Amount),
		Version:         current.Version + 1,
		UpdatedAt:       now,
	}
	res := db.Model(&UserBalanceModel{}).
		Where("user_id = ? AND version = ?", userID, current.Version).
		Updates(map[string]interface{}{
			"points":           next.Points,
			"recovery_balance": next.RecoveryBalance,
			"version":          next.Version,
			"updated_at":       now,
		})
	if res.Error != nil {
		return nil, classify("update balance", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrConcurrencyConflict
	}

	record := &LedgerRecordModel{
		UserID:      userID,
		Kind:        string(delta.Kind),
		Points:      delta.Points,
		Amount:      delta.Amount,
		Description: delta.Description,
		CreatedAt:   now,
	}
	if err := db.Create(record).Error; err != nil {
		return nil, classify("append ledger record", err)
	}
	return next, nil
}

// ListRecords 按 created_at、id 倒序分页返回流水
func (s *GormLedgerStore) ListRecords(ctx context.Context, userID int64, q domain.RecordQuery) ([]*domain.LedgerRecord, error) {
	page := q.Page.Normalize()
	db := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.Kind != nil {
		db = db.Where("kind = ?", string(*q.Kind))
	}
	if q.PointsOnly {
		db = db.Where("points <> 0")
	}

	var models []LedgerRecordModel
	err := db.Order("created_at DESC").Order("id DESC").
		Offset(page.Offset).Limit(page.Limit).
		Find(&models).Error
	if err != nil {
		return nil, classify("list ledger records", err)
	}

	out := make([]*domain.LedgerRecord, 0, len(models))
	for i := range models {
		r, err := ToDomainLedgerRecord(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
