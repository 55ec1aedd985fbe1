package application

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/pkg/metrics"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
	"github.com/haomehaode/kuileme/internal/service/rewards/port"
)

const giftExchangePrefix = "兑换礼品："

// ListGifts 返回礼品目录，giftType 为空时返回全部
func (s *RewardsService) ListGifts(ctx context.Context, giftType *domain.GiftType) ([]GiftResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListGifts")
	defer span.End()

	gifts, err := s.uow.Repositories().Gifts.List(ctx, giftType)
	if err != nil {
		return nil, fail(span, err)
	}
	out := make([]GiftResponse, 0, len(gifts))
	for _, g := range gifts {
		out = append(out, GiftResponse{
			ID:               g.ID,
			Name:             g.Name,
			Description:      g.Description,
			ImageURL:         g.ImageURL,
			PointsRequired:   g.PointsRequired,
			RecoveryRequired: g.RecoveryRequired,
			Type:             g.Type,
			Stock:            g.Stock,
			IsLimited:        g.IsLimited,
		})
	}
	return out, nil
}

// ExchangeGift 是礼品兑换的核心业务逻辑。
// 扣款、减库存、写兑换记录在同一个事务中完成，任一步失败都不会留下部分修改。
func (s *RewardsService) ExchangeGift(ctx context.Context, userID, giftID int64, shippingAddress *string) (*ExchangeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ExchangeGift")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("gift.id", giftID),
	)

	// 1. 库存闸门：限量礼品在 Redis 中已售罄时直接拒绝
	reserved, err := s.reserveStock(ctx, giftID)
	if err != nil {
		metrics.ExchangeOutcomes.WithLabelValues(outcomeOf(err)).Inc()
		return nil, fail(span, err)
	}

	// 2. 数据库事务：锁礼品 -> 校验余额 -> 扣款 -> 减库存 -> 写记录
	var record *domain.ExchangeRecord
	err = s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		gift, err := repos.Gifts.GetForUpdate(ctx, giftID)
		if err != nil {
			return err
		}
		if gift.Stock <= 0 {
			return &domain.OutOfStockError{GiftID: giftID}
		}

		balance, err := repos.Ledger.GetOrCreateBalance(ctx, userID)
		if err != nil {
			return err
		}
		pts, amt := balance.Shortfall(-gift.PointsRequired, gift.RecoveryRequired.Neg())
		if pts > 0 || amt.IsPositive() {
			return &domain.InsufficientFundsError{PointsShortfall: pts, AmountShortfall: amt}
		}

		if !gift.IsFree() {
			_, err := repos.Ledger.ApplyDelta(ctx, userID, domain.Delta{
				Points:      -gift.PointsRequired,
				Amount:      gift.RecoveryRequired.Neg(),
				Kind:        domain.RecordKindGiftExchange,
				Description: giftExchangePrefix + gift.Name,
			})
			if err != nil {
				return err
			}
		}

		if err := repos.Gifts.DecrementStock(ctx, giftID); err != nil {
			return err
		}

		record = &domain.ExchangeRecord{
			UserID:       userID,
			GiftID:       gift.ID,
			GiftName:     gift.Name,
			GiftType:     gift.Type,
			PointsUsed:   gift.PointsRequired,
			RecoveryUsed: gift.RecoveryRequired,
			Status:       domain.ExchangeStatusPending,
		}
		if gift.Type == domain.GiftTypePhysical {
			record.ShippingAddress = shippingAddress
		}
		return repos.Exchanges.Create(ctx, record)
	})
	if err != nil {
		if reserved {
			s.releaseStock(ctx, giftID)
		}
		metrics.ExchangeOutcomes.WithLabelValues(outcomeOf(err)).Inc()
		return nil, fail(span, err)
	}

	metrics.ExchangeOutcomes.WithLabelValues("success").Inc()
	if !record.RecoveryUsed.IsZero() || record.PointsUsed != 0 {
		metrics.LedgerMutations.WithLabelValues(string(domain.RecordKindGiftExchange)).Inc()
	}
	span.AddEvent("Gift exchanged")
	logger.Ctx(ctx).Info().
		Int64("user_id", userID).
		Int64("gift_id", giftID).
		Int64("exchange_id", record.ID).
		Msg("gift exchanged")

	// 3. 通知履约方，失败不影响已提交的兑换
	if s.publisher != nil {
		if err := s.publisher.PublishExchangeCreated(ctx, record); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).Int64("exchange_id", record.ID).Msg("failed to publish exchange created event")
		}
	}

	resp := newExchangeRecordResponse(record)
	return &resp, nil
}

// reserveStock 返回是否在闸门中预占了库存；闸门不可用时退回到只依赖数据库
func (s *RewardsService) reserveStock(ctx context.Context, giftID int64) (bool, error) {
	if s.gate == nil {
		return false, nil
	}
	res, err := s.gate.Reserve(ctx, giftID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("gift_id", giftID).Msg("stock gate unavailable, falling back to database")
		return false, nil
	}
	switch res {
	case port.StockSoldOut:
		return false, &domain.OutOfStockError{GiftID: giftID}
	case port.StockReserved:
		return true, nil
	default:
		return false, nil
	}
}

func (s *RewardsService) releaseStock(ctx context.Context, giftID int64) {
	if err := s.gate.Release(ctx, giftID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("gift_id", giftID).Msg("failed to release stock gate reservation")
	}
}

// outcomeOf 把错误归类为指标标签
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}

// ListExchangeRecords 按时间倒序返回用户的兑换记录
func (s *RewardsService) ListExchangeRecords(ctx context.Context, userID int64, page domain.Page) ([]ExchangeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListExchangeRecords")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	records, err := s.uow.Repositories().Exchanges.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, fail(span, err)
	}
	out := make([]ExchangeRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, newExchangeRecordResponse(r))
	}
	return out, nil
}

// AdvanceExchange 推进兑换记录的履约状态。取消只改变状态，不退款。
func (s *RewardsService) AdvanceExchange(ctx context.Context, exchangeID int64, to domain.ExchangeStatus, trackingNumber *string) (*ExchangeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.AdvanceExchange")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("exchange.id", exchangeID),
		attribute.String("exchange.to", string(to)),
	)

	var record *domain.ExchangeRecord
	err := s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		r, err := repos.Exchanges.GetForUpdate(ctx, exchangeID)
		if err != nil {
			return err
		}
		if err := r.Advance(to, trackingNumber); err != nil {
			return err
		}
		record = r
		return repos.Exchanges.Update(ctx, r)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	logger.Ctx(ctx).Info().Int64("exchange_id", exchangeID).Str("status", string(to)).Msg("exchange advanced")
	resp := newExchangeRecordResponse(record)
	return &resp, nil
}

// CancelExchange 用户取消自己的兑换，只允许待发货状态。
// 不属于该用户的记录按不存在处理。
func (s *RewardsService) CancelExchange(ctx context.Context, userID, exchangeID int64) (*ExchangeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.CancelExchange")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("exchange.id", exchangeID),
	)

	var record *domain.ExchangeRecord
	err := s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		r, err := repos.Exchanges.GetForUpdate(ctx, exchangeID)
		if err != nil {
			return err
		}
		if r.UserID != userID {
			return &domain.NotFoundError{Entity: "exchange record", ID: exchangeID}
		}
		if err := r.Advance(domain.ExchangeStatusCancelled, nil); err != nil {
			return err
		}
		record = r
		return repos.Exchanges.Update(ctx, r)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	logger.Ctx(ctx).Info().Int64("user_id", userID).Int64("exchange_id", exchangeID).Msg("exchange cancelled by user")
	resp := newExchangeRecordResponse(record)
	return &resp, nil
}

// WarmStockGate 用数据库库存预热所有限量礼品的闸门
func (s *RewardsService) WarmStockGate(ctx context.Context) error {
	if s.gate == nil {
		return nil
	}
	gifts, err := s.uow.Repositories().Gifts.ListLimited(ctx)
	if err != nil {
		return err
	}
	for _, g := range gifts {
		if err := s.gate.PrepareStock(ctx, g.ID, g.Stock); err != nil {
			return err
		}
	}
	logger.Ctx(ctx).Info().Int("count", len(gifts)).Msg("stock gate warmed")
	return nil
}
