package infrastructure

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// GormGrowthRepository 是 domain.GrowthRepository 的 GORM 实现
type GormGrowthRepository struct {
	db  *gorm.DB
	uow *GormUnitOfWork
}

func (r *GormGrowthRepository) GetOrCreateLevel(ctx context.Context, userID int64) (*domain.UserLevel, error) {
	return r.ensureLevel(r.db.WithContext(ctx), userID, false)
}

func (r *GormGrowthRepository) GetOrCreateLevelForUpdate(ctx context.Context, userID int64) (*domain.UserLevel, error) {
	return r.ensureLevel(r.db.WithContext(ctx), userID, true)
}

func (r *GormGrowthRepository) ensureLevel(db *gorm.DB, userID int64, lock bool) (*domain.UserLevel, error) {
	seed := &UserLevelModel{UserID: userID, Level: 1}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(seed).Error
	if err != nil {
		return nil, classify("ensure level", err)
	}

	q := db
	if lock {
		q = r.uow.forUpdate(db)
	}
	var m UserLevelModel
	if err := q.Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, classify("load level", err)
	}
	return ToDomainLevel(&m), nil
}

// SaveLevel 按版本号条件更新，版本不匹配时返回并发冲突
func (r *GormGrowthRepository) SaveLevel(ctx context.Context, level *domain.UserLevel) error {
	res := r.db.WithContext(ctx).Model(&UserLevelModel{}).
		Where("user_id = ? AND version = ?", level.UserID, level.Version).
		Updates(map[string]interface{}{
			"level":   level.Level,
			"exp":     level.Exp,
			"version": level.Version + 1,
		})
	if res.Error != nil {
		return classify("save level", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrencyConflict
	}
	level.Version++
	return nil
}

func (r *GormGrowthRepository) ListMedals(ctx context.Context, rarity *domain.Rarity) ([]*domain.Medal, error) {
	db := r.db.WithContext(ctx)
	if rarity != nil {
		db = db.Where("rarity = ?", string(*rarity))
	}
	var models []MedalModel
	if err := db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, classify("list medals", err)
	}
	out := make([]*domain.Medal, 0, len(models))
	for i := range models {
		m, err := ToDomainMedal(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *GormGrowthRepository) GetMedal(ctx context.Context, id int64) (*domain.Medal, error) {
	var m MedalModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound("load medal", "medal", id, err)
	}
	return ToDomainMedal(&m)
}

func (r *GormGrowthRepository) CreateMedal(ctx context.Context, medal *domain.Medal) error {
	m := FromDomainMedal(medal)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return classify("create medal", err)
	}
	medal.ID = int64(m.ID)
	medal.CreatedAt = m.CreatedAt
	return nil
}

// EnsureProgress 插入缺失的零进度行后读取全部进度，重复调用结果不变
func (r *GormGrowthRepository) EnsureProgress(ctx context.Context, userID int64, medalIDs []int64) (map[int64]*domain.UserMedalProgress, error) {
	out := make(map[int64]*domain.UserMedalProgress, len(medalIDs))
	if len(medalIDs) == 0 {
		return out, nil
	}

	db := r.db.WithContext(ctx)
	seeds := make([]UserMedalModel, 0, len(medalIDs))
	for _, id := range medalIDs {
		seeds = append(seeds, UserMedalModel{UserID: userID, MedalID: id})
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "medal_id"}},
		DoNothing: true,
	}).Create(&seeds).Error
	if err != nil {
		return nil, classify("ensure medal progress", err)
	}

	var models []UserMedalModel
	if err := db.Where("user_id = ? AND medal_id IN ?", userID, medalIDs).Find(&models).Error; err != nil {
		return nil, classify("load medal progress", err)
	}
	for i := range models {
		out[models[i].MedalID] = ToDomainMedalProgress(&models[i])
	}
	return out, nil
}

func (r *GormGrowthRepository) GetProgressForUpdate(ctx context.Context, userID, medalID int64) (*domain.UserMedalProgress, error) {
	if _, err := r.EnsureProgress(ctx, userID, []int64{medalID}); err != nil {
		return nil, err
	}
	var m UserMedalModel
	err := r.uow.forUpdate(r.db.WithContext(ctx)).
		Where("user_id = ? AND medal_id = ?", userID, medalID).
		First(&m).Error
	if err != nil {
		return nil, classify("load medal progress", err)
	}
	return ToDomainMedalProgress(&m), nil
}

func (r *GormGrowthRepository) SaveProgress(ctx context.Context, p *domain.UserMedalProgress) error {
	err := r.db.WithContext(ctx).Model(&UserMedalModel{}).
		Where("user_id = ? AND medal_id = ?", p.UserID, p.MedalID).
		Updates(map[string]interface{}{
			"progress":    p.Progress,
			"is_unlocked": p.IsUnlocked,
			"unlocked_at": p.UnlockedAt,
			"updated_at":  time.Now(),
		}).Error
	return classify("save medal progress", err)
}

func (r *GormGrowthRepository) CountUnlocked(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&UserMedalModel{}).
		Where("user_id = ? AND is_unlocked = ?", userID, true).
		Count(&n).Error
	if err != nil {
		return 0, classify("count unlocked medals", err)
	}
	return n, nil
}
