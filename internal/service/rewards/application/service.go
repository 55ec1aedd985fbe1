package application

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/pkg/metrics"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
	"github.com/haomehaode/kuileme/internal/service/rewards/port"
)

// DefaultLotteryCost 每次抽奖消耗的回血金
var DefaultLotteryCost = decimal.NewFromInt(1)

// RewardsService 定义了成长与奖励服务提供的所有业务用例
type RewardsService struct {
	uow         domain.UnitOfWork
	tracer      trace.Tracer
	lottery     *domain.LotteryEngine
	gate        port.StockGate      // 可选
	publisher   port.EventPublisher // 可选
	levels      domain.LevelCurve
	lotteryCost decimal.Decimal
}

// Option 用于配置 RewardsService 的可选依赖
type Option func(*RewardsService)

// WithStockGate 启用限量礼品的库存闸门
func WithStockGate(gate port.StockGate) Option {
	return func(s *RewardsService) { s.gate = gate }
}

// WithEventPublisher 启用兑换事件发布
func WithEventPublisher(p port.EventPublisher) Option {
	return func(s *RewardsService) { s.publisher = p }
}

// WithLevelCurve 设置升级所需经验
func WithLevelCurve(c domain.LevelCurve) Option {
	return func(s *RewardsService) { s.levels = c }
}

// WithLotteryCost 设置每次抽奖的花费
func WithLotteryCost(cost decimal.Decimal) Option {
	return func(s *RewardsService) { s.lotteryCost = cost }
}

// NewRewardsService 创建一个新的奖励服务实例
func NewRewardsService(uow domain.UnitOfWork, tracer trace.Tracer, lottery *domain.LotteryEngine, opts ...Option) *RewardsService {
	s := &RewardsService{
		uow:         uow,
		tracer:      tracer,
		lottery:     lottery,
		levels:      domain.LevelCurve{ExpPerLevel: domain.DefaultExpPerLevel},
		lotteryCost: DefaultLotteryCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fail 记录 span 错误并原样返回
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// GetBalance 返回用户余额，不存在时创建零余额
func (s *RewardsService) GetBalance(ctx context.Context, userID int64) (*BalanceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetBalance")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	b, err := s.uow.Repositories().Ledger.GetOrCreateBalance(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	return newBalanceResponse(b), nil
}

// ListLedgerRecords 按时间倒序返回回血金流水，kind 为空时不过滤
func (s *RewardsService) ListLedgerRecords(ctx context.Context, userID int64, kind *domain.RecordKind, page domain.Page) ([]LedgerRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListLedgerRecords")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	records, err := s.uow.Repositories().Ledger.ListRecords(ctx, userID, domain.RecordQuery{Kind: kind, Page: page})
	if err != nil {
		return nil, fail(span, err)
	}
	return newLedgerRecordResponses(records), nil
}

// ListPointsRecords 只返回积分发生变化的流水
func (s *RewardsService) ListPointsRecords(ctx context.Context, userID int64, page domain.Page) ([]LedgerRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListPointsRecords")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	records, err := s.uow.Repositories().Ledger.ListRecords(ctx, userID, domain.RecordQuery{PointsOnly: true, Page: page})
	if err != nil {
		return nil, fail(span, err)
	}
	return newLedgerRecordResponses(records), nil
}

// ApplyAdjustment 执行发帖奖励、充值、提现等外部调整。
// 增加积分时在同一事务里累加经验并重新计算等级。
func (s *RewardsService) ApplyAdjustment(ctx context.Context, adj Adjustment) (*BalanceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ApplyAdjustment")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", adj.UserID),
		attribute.String("ledger.kind", string(adj.Kind)),
	)

	if !adj.Kind.IsAdjustment() {
		return nil, fail(span, domain.InvalidArgument("kind %q cannot be applied as an adjustment", adj.Kind))
	}

	var balance *domain.UserBalance
	err := s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		b, err := repos.Ledger.ApplyDelta(ctx, adj.UserID, domain.Delta{
			Points:      adj.Points,
			Amount:      adj.Amount,
			Kind:        adj.Kind,
			Description: adj.Description,
		})
		if err != nil {
			return err
		}
		balance = b

		if adj.Points <= 0 {
			return nil
		}
		lvl, err := repos.Growth.GetOrCreateLevelForUpdate(ctx, adj.UserID)
		if err != nil {
			return err
		}
		s.levels.Gain(lvl, adj.Points)
		return repos.Growth.SaveLevel(ctx, lvl)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	metrics.LedgerMutations.WithLabelValues(string(adj.Kind)).Inc()
	logger.Ctx(ctx).Info().
		Int64("user_id", adj.UserID).
		Str("kind", string(adj.Kind)).
		Int64("points", adj.Points).
		Str("amount", adj.Amount.String()).
		Msg("balance adjusted")
	return newBalanceResponse(balance), nil
}
