package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

func TestDrawLottery_CostAndPrizeAreSeparateRecords(t *testing.T) {
	s, _ := newTestService(t, 0.7) // 小额回血
	ctx := context.Background()
	fund(t, s, 1, 0, "10.00")

	res, err := s.DrawLottery(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "小额回血", res.PrizeName)
	assert.True(t, decimal.NewFromInt(5).Equal(res.PrizeAmount))
	assert.True(t, decimal.NewFromInt(14).Equal(res.NewBalance))

	records, err := s.ListLedgerRecords(ctx, 1, nil, domain.Page{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.RecordKindLotteryWin, records[0].Kind)
	assert.Equal(t, "抽中小额回血", records[0].Description)
	assert.Equal(t, domain.RecordKindLotteryCost, records[1].Kind)
	assert.Equal(t, "参与抽奖投入", records[1].Description)
	assert.True(t, decimal.NewFromInt(-1).Equal(records[1].Amount))
}

func TestDrawLottery_NoPrizeOnlyDebitsCost(t *testing.T) {
	s, _ := newTestService(t, 0.1) // 谢谢参与
	ctx := context.Background()
	fund(t, s, 1, 0, "1.00")

	res, err := s.DrawLottery(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "谢谢参与", res.PrizeName)
	assert.True(t, res.NewBalance.IsZero())

	cost := domain.RecordKindLotteryCost
	records, err := s.ListLedgerRecords(ctx, 1, &cost, domain.Page{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, ledgerCount(t, s, 1))
}

func TestDrawLottery_InsufficientBalanceMutatesNothing(t *testing.T) {
	s, _ := newTestService(t, 0.7)
	ctx := context.Background()
	fund(t, s, 1, 0, "0.50")

	_, err := s.DrawLottery(ctx, 1)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	var funds *domain.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.True(t, decimal.RequireFromString("0.5").Equal(funds.AmountShortfall))

	bal, err := s.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.5").Equal(bal.RecoveryBalance))
	assert.Equal(t, 1, ledgerCount(t, s, 1))
}

func TestDrawLottery_ConfigurableCost(t *testing.T) {
	s, _ := newTestService(t, 0.1, WithLotteryCost(decimal.NewFromInt(2)))
	fund(t, s, 1, 0, "3.00")

	res, err := s.DrawLottery(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1).Equal(res.NewBalance))
}
