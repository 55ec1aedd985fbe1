package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/haomehaode/kuileme/internal/pkg/database"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// newTestUnitOfWork 打开一个独立的内存 SQLite 库并建表。
// 单连接让所有事务串行执行。
func newTestUnitOfWork(t *testing.T) (*GormUnitOfWork, *gorm.DB) {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormUnitOfWork(db, TxOptions{MaxRetries: 3, LockTimeout: 10 * time.Second}), db
}

func mustCredit(t *testing.T, store domain.LedgerStore, userID, points int64, amount string) {
	t.Helper()
	_, err := store.ApplyDelta(context.Background(), userID, domain.Delta{
		Points:      points,
		Amount:      decimal.RequireFromString(amount),
		Kind:        domain.RecordKindRecharge,
		Description: "test credit",
	})
	require.NoError(t, err)
}
