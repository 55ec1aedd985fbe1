package infrastructure

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

func TestLedgerStore_GetOrCreateBalanceIsIdempotent(t *testing.T) {
	uow, db := newTestUnitOfWork(t)
	store := uow.Repositories().Ledger
	ctx := context.Background()

	b1, err := store.GetOrCreateBalance(ctx, 1)
	require.NoError(t, err)
	b2, err := store.GetOrCreateBalance(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(0), b1.Points)
	assert.True(t, b1.RecoveryBalance.IsZero())
	assert.Equal(t, b1.Version, b2.Version)

	var n int64
	require.NoError(t, db.Model(&UserBalanceModel{}).Where("user_id = ?", 1).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestLedgerStore_ApplyDeltaAppendsRecord(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	store := uow.Repositories().Ledger
	ctx := context.Background()

	b, err := store.ApplyDelta(ctx, 1, domain.Delta{
		Points: 10, Amount: decimal.RequireFromString("3.50"),
		Kind: domain.RecordKindReward, Description: "发帖奖励",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), b.Points)
	assert.Equal(t, "3.5", b.RecoveryBalance.String())
	assert.Equal(t, int64(1), b.Version)

	b, err = store.ApplyDelta(ctx, 1, domain.Delta{
		Points: -4, Amount: decimal.RequireFromString("-1.25"),
		Kind: domain.RecordKindGiftExchange, Description: "兑换礼品",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), b.Points)
	assert.Equal(t, "2.25", b.RecoveryBalance.String())

	records, err := store.ListRecords(ctx, 1, domain.RecordQuery{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.RecordKindGiftExchange, records[0].Kind)
	assert.Equal(t, int64(-4), records[0].Points)
	assert.Equal(t, "-1.25", records[0].Amount.String())
	assert.Equal(t, domain.RecordKindReward, records[1].Kind)

	// 余额等于全部流水之和
	sumPoints, sumAmount := int64(0), decimal.Zero
	for _, r := range records {
		sumPoints += r.Points
		sumAmount = sumAmount.Add(r.Amount)
	}
	stored, err := store.GetOrCreateBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, sumPoints, stored.Points)
	assert.True(t, sumAmount.Equal(stored.RecoveryBalance))
}

func TestLedgerStore_InsufficientFundsLeavesStateUntouched(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	store := uow.Repositories().Ledger
	ctx := context.Background()
	mustCredit(t, store, 1, 20, "1.00")

	_, err := store.ApplyDelta(ctx, 1, domain.Delta{
		Points: -50, Amount: decimal.RequireFromString("-3"),
		Kind: domain.RecordKindGiftExchange,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	var funds *domain.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, int64(30), funds.PointsShortfall)
	assert.Equal(t, "2", funds.AmountShortfall.String())

	b, err := store.GetOrCreateBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), b.Points)
	assert.Equal(t, "1", b.RecoveryBalance.String())

	records, err := store.ListRecords(ctx, 1, domain.RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLedgerStore_RejectsZeroDelta(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	_, err := uow.Repositories().Ledger.ApplyDelta(context.Background(), 1, domain.Delta{Kind: domain.RecordKindReward})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestLedgerStore_ExtremePointDeltasKeepBalanceInRange(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	store := uow.Repositories().Ledger
	ctx := context.Background()

	_, err := store.ApplyDelta(ctx, 7, domain.Delta{Points: math.MinInt64, Kind: domain.RecordKindWithdraw})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = store.ApplyDelta(ctx, 7, domain.Delta{Points: -math.MaxInt64, Kind: domain.RecordKindWithdraw})
	var funds *domain.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, int64(math.MaxInt64), funds.PointsShortfall)

	mustCredit(t, store, 7, math.MaxInt64, "0")
	_, err = store.ApplyDelta(ctx, 7, domain.Delta{Points: 1, Kind: domain.RecordKindReward})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	stored, err := store.GetOrCreateBalance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), stored.Points)

	records, err := store.ListRecords(ctx, 7, domain.RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLedgerStore_ConcurrentDeltasAreSerialized(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	store := uow.Repositories().Ledger
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ApplyDelta(ctx, 1, domain.Delta{Points: 1, Kind: domain.RecordKindReward})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	b, err := store.GetOrCreateBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(n), b.Points)
	assert.Equal(t, int64(n), b.Version)

	records, err := store.ListRecords(ctx, 1, domain.RecordQuery{Page: domain.Page{Limit: domain.MaxPageLimit}})
	require.NoError(t, err)
	assert.Len(t, records, n)
}

func TestLedgerStore_ListRecordsFiltersAndPages(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	store := uow.Repositories().Ledger
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.ApplyDelta(ctx, 1, domain.Delta{Points: 1, Kind: domain.RecordKindReward})
		require.NoError(t, err)
	}
	_, err := store.ApplyDelta(ctx, 1, domain.Delta{Amount: decimal.NewFromInt(5), Kind: domain.RecordKindLotteryWin})
	require.NoError(t, err)
	_, err = store.ApplyDelta(ctx, 2, domain.Delta{Points: 1, Kind: domain.RecordKindReward})
	require.NoError(t, err)

	all, err := store.ListRecords(ctx, 1, domain.RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, domain.RecordKindLotteryWin, all[0].Kind)

	win := domain.RecordKindLotteryWin
	wins, err := store.ListRecords(ctx, 1, domain.RecordQuery{Kind: &win})
	require.NoError(t, err)
	assert.Len(t, wins, 1)

	points, err := store.ListRecords(ctx, 1, domain.RecordQuery{PointsOnly: true})
	require.NoError(t, err)
	assert.Len(t, points, 5)

	page, err := store.ListRecords(ctx, 1, domain.RecordQuery{Page: domain.Page{Offset: 4, Limit: 10}})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[4].ID, page[0].ID)
	assert.Equal(t, all[5].ID, page[1].ID)
}

func TestLedgerStore_JoinsCallerTransaction(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	ctx := context.Background()

	err := uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if _, err := repos.Ledger.ApplyDelta(ctx, 1, domain.Delta{Points: 5, Kind: domain.RecordKindReward}); err != nil {
			return err
		}
		return &domain.OutOfStockError{GiftID: 1}
	})
	require.ErrorIs(t, err, domain.ErrOutOfStock)

	b, err := uow.Repositories().Ledger.GetOrCreateBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Points)
}
