package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

func TestGiftRepository_DecrementStockStopsAtZero(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	gifts := uow.Repositories().Gifts
	ctx := context.Background()

	g := &domain.Gift{Name: "限量徽章", Type: domain.GiftTypeLimited, Stock: 1, IsLimited: true, RecoveryRequired: decimal.Zero}
	require.NoError(t, gifts.Create(ctx, g))
	require.NotZero(t, g.ID)

	require.NoError(t, gifts.DecrementStock(ctx, g.ID))
	err := gifts.DecrementStock(ctx, g.ID)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	stored, err := gifts.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Stock)
}

func TestGiftRepository_ListByType(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	gifts := uow.Repositories().Gifts
	ctx := context.Background()

	require.NoError(t, gifts.Create(ctx, &domain.Gift{Name: "帆布袋", Type: domain.GiftTypePhysical, Stock: 5, RecoveryRequired: decimal.Zero}))
	require.NoError(t, gifts.Create(ctx, &domain.Gift{Name: "头像框", Type: domain.GiftTypeVirtual, Stock: 5, RecoveryRequired: decimal.Zero}))

	all, err := gifts.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	virtual := domain.GiftTypeVirtual
	only, err := gifts.List(ctx, &virtual)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "头像框", only[0].Name)

	_, err = gifts.Get(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGiftRepository_CorruptTypeIsStorageError(t *testing.T) {
	uow, db := newTestUnitOfWork(t)
	require.NoError(t, db.Create(&GiftModel{Name: "坏数据", Type: "hologram", RecoveryRequired: decimal.Zero}).Error)

	_, err := uow.Repositories().Gifts.List(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestExchangeRepository_CreateUpdateList(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	exchanges := uow.Repositories().Exchanges
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, exchanges.Create(ctx, &domain.ExchangeRecord{
			UserID: 1, GiftID: int64(i + 1), GiftName: "礼品", GiftType: domain.GiftTypeVirtual,
			RecoveryUsed: decimal.Zero, Status: domain.ExchangeStatusPending,
		}))
	}

	list, err := exchanges.ListByUser(ctx, 1, domain.Page{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].GiftID)

	rec := list[0]
	require.NoError(t, rec.Advance(domain.ExchangeStatusShipped, nil))
	require.NoError(t, exchanges.Update(ctx, rec))

	stored, err := exchanges.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeStatusShipped, stored.Status)

	_, err = exchanges.Get(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGrowthRepository_LevelAndProgress(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	growth := uow.Repositories().Growth
	ctx := context.Background()

	lvl, err := growth.GetOrCreateLevel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, lvl.Level)
	assert.Equal(t, int64(0), lvl.Exp)

	lvl.Exp, lvl.Level = 150, 2
	require.NoError(t, growth.SaveLevel(ctx, lvl))
	stale := *lvl
	stale.Version = 0
	assert.ErrorIs(t, growth.SaveLevel(ctx, &stale), domain.ErrConcurrencyConflict)

	target := int64(3)
	medal := &domain.Medal{Name: "初来乍到", Rarity: domain.RarityCommon, UnlockCondition: "发布第一条帖子", TargetValue: &target}
	require.NoError(t, growth.CreateMedal(ctx, medal))

	progress, err := growth.EnsureProgress(ctx, 1, []int64{medal.ID})
	require.NoError(t, err)
	require.Contains(t, progress, medal.ID)
	assert.Equal(t, int64(0), progress[medal.ID].Progress)

	// 重复调用不会产生新行
	progress, err = growth.EnsureProgress(ctx, 1, []int64{medal.ID})
	require.NoError(t, err)
	assert.Len(t, progress, 1)

	n, err := growth.CountUnlocked(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedCatalog(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gifts:
  - name: 帆布袋
    type: physical
    points_required: 50
    recovery_required: "5.00"
  - name: 限量徽章
    type: limited
    points_required: 200
    stock: 10
medals:
  - name: 初来乍到
    rarity: common
    unlock_condition: 发布第一条帖子
    target_value: 1
`), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.NoError(t, SeedCatalog(ctx, uow, catalog))
	require.NoError(t, SeedCatalog(ctx, uow, catalog))

	gifts, err := uow.Repositories().Gifts.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, gifts, 2)
	assert.Equal(t, defaultGiftStock, gifts[0].Stock)
	assert.Equal(t, "5", gifts[0].RecoveryRequired.String())
	assert.True(t, gifts[1].IsLimited)
	assert.Equal(t, int64(10), gifts[1].Stock)

	medals, err := uow.Repositories().Growth.ListMedals(ctx, nil)
	require.NoError(t, err)
	require.Len(t, medals, 1)
	assert.Equal(t, int64(1), *medals[0].TargetValue)
}

func TestSeedCatalog_RejectsNegativeStock(t *testing.T) {
	uow, _ := newTestUnitOfWork(t)
	ctx := context.Background()
	good, bad := int64(5), int64(-1)

	err := SeedCatalog(ctx, uow, &Catalog{Gifts: []GiftSeed{
		{Name: "帆布袋", Type: "physical", PointsRequired: 50, Stock: &good},
		{Name: "坏数据", Type: "virtual", PointsRequired: 10, Stock: &bad},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	gifts, err := uow.Repositories().Gifts.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, gifts)
}
