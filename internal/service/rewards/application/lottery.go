package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/pkg/metrics"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

const (
	lotteryCostDescription = "参与抽奖投入"
	lotteryWinPrefix       = "抽中"
)

// DrawLottery 扣除抽奖花费并发放奖品。
// 奖项在事务外抽取，冲突重试时不会重新抽奖。
func (s *RewardsService) DrawLottery(ctx context.Context, userID int64) (*LotteryResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.DrawLottery")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	prize := s.lottery.Draw()
	span.SetAttributes(attribute.String("lottery.prize", prize.Name))

	var balance *domain.UserBalance
	err := s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		b, err := repos.Ledger.ApplyDelta(ctx, userID, domain.Delta{
			Amount:      s.lotteryCost.Neg(),
			Kind:        domain.RecordKindLotteryCost,
			Description: lotteryCostDescription,
		})
		if err != nil {
			return err
		}
		balance = b

		if !prize.Amount.IsPositive() {
			return nil
		}
		b, err = repos.Ledger.ApplyDelta(ctx, userID, domain.Delta{
			Amount:      prize.Amount,
			Kind:        domain.RecordKindLotteryWin,
			Description: lotteryWinPrefix + prize.Name,
		})
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	metrics.LedgerMutations.WithLabelValues(string(domain.RecordKindLotteryCost)).Inc()
	if prize.Amount.IsPositive() {
		metrics.LedgerMutations.WithLabelValues(string(domain.RecordKindLotteryWin)).Inc()
	}
	metrics.LotteryPrizes.WithLabelValues(prize.Name).Inc()
	span.AddEvent("Lottery drawn")
	logger.Ctx(ctx).Info().Int64("user_id", userID).Str("prize", prize.Name).Msg("lottery drawn")

	return &LotteryResult{
		PrizeName:   prize.Name,
		PrizeAmount: prize.Amount,
		NewBalance:  balance.RecoveryBalance,
	}, nil
}
