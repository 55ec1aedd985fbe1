package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// GetGrowthSummary 汇总等级、经验、积分、回血金和已解锁勋章数，缺失的行会被创建
func (s *RewardsService) GetGrowthSummary(ctx context.Context, userID int64) (*GrowthSummary, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetGrowthSummary")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	var summary GrowthSummary
	err := s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		lvl, err := repos.Growth.GetOrCreateLevel(ctx, userID)
		if err != nil {
			return err
		}
		balance, err := repos.Ledger.GetOrCreateBalance(ctx, userID)
		if err != nil {
			return err
		}
		unlocked, err := repos.Growth.CountUnlocked(ctx, userID)
		if err != nil {
			return err
		}
		summary = GrowthSummary{
			Level:               lvl.Level,
			Exp:                 lvl.Exp,
			Points:              balance.Points,
			RecoveryBalance:     balance.RecoveryBalance,
			UnlockedMedalsCount: unlocked,
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return &summary, nil
}

// GetLevel 返回用户等级以及升到下一级所需的累计经验
func (s *RewardsService) GetLevel(ctx context.Context, userID int64) (*LevelResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetLevel")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	lvl, err := s.uow.Repositories().Growth.GetOrCreateLevel(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	per := s.levels.ExpPerLevel
	if per <= 0 {
		per = domain.DefaultExpPerLevel
	}
	return &LevelResponse{
		UserID:      lvl.UserID,
		Level:       lvl.Level,
		Exp:         lvl.Exp,
		NextLevelAt: int64(lvl.Level) * per,
	}, nil
}

// ListMedals 返回勋章及当前用户的进度，首次查看时为每个勋章创建零进度
func (s *RewardsService) ListMedals(ctx context.Context, userID int64, rarity *domain.Rarity) ([]MedalResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListMedals")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	var out []MedalResponse
	err := s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		medals, err := repos.Growth.ListMedals(ctx, rarity)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(medals))
		for _, m := range medals {
			ids = append(ids, m.ID)
		}
		progress, err := repos.Growth.EnsureProgress(ctx, userID, ids)
		if err != nil {
			return err
		}

		out = make([]MedalResponse, 0, len(medals))
		for _, m := range medals {
			view := domain.MedalWithProgress{Medal: *m}
			if p, ok := progress[m.ID]; ok {
				view.Progress = p.Progress
				view.IsUnlocked = p.IsUnlocked
				view.UnlockedAt = p.UnlockedAt
			}
			out = append(out, newMedalResponse(view))
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// RecordMedalProgress 为用户增加某个勋章的进度，达到目标值时解锁
func (s *RewardsService) RecordMedalProgress(ctx context.Context, userID, medalID, delta int64) (*MedalResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.RecordMedalProgress")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("medal.id", medalID),
	)

	var view domain.MedalWithProgress
	err := s.uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		medal, err := repos.Growth.GetMedal(ctx, medalID)
		if err != nil {
			return err
		}
		p, err := repos.Growth.GetProgressForUpdate(ctx, userID, medalID)
		if err != nil {
			return err
		}
		p.AddProgress(medal, delta, time.Now())
		if err := repos.Growth.SaveProgress(ctx, p); err != nil {
			return err
		}
		view = domain.MedalWithProgress{
			Medal:      *medal,
			Progress:   p.Progress,
			IsUnlocked: p.IsUnlocked,
			UnlockedAt: p.UnlockedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	resp := newMedalResponse(view)
	return &resp, nil
}
