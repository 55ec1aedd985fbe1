package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// GormGiftRepository 是 domain.GiftRepository 的 GORM 实现
type GormGiftRepository struct {
	db  *gorm.DB
	uow *GormUnitOfWork
}

func (r *GormGiftRepository) List(ctx context.Context, giftType *domain.GiftType) ([]*domain.Gift, error) {
	db := r.db.WithContext(ctx)
	if giftType != nil {
		db = db.Where("type = ?", string(*giftType))
	}
	return r.find(db, "list gifts")
}

// ListLimited 返回所有限量礼品，用于预热库存闸门
func (r *GormGiftRepository) ListLimited(ctx context.Context) ([]*domain.Gift, error) {
	return r.find(r.db.WithContext(ctx).Where("is_limited = ?", true), "list limited gifts")
}

func (r *GormGiftRepository) find(db *gorm.DB, op string) ([]*domain.Gift, error) {
	var models []GiftModel
	if err := db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, classify(op, err)
	}
	out := make([]*domain.Gift, 0, len(models))
	for i := range models {
		g, err := ToDomainGift(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *GormGiftRepository) Get(ctx context.Context, id int64) (*domain.Gift, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *GormGiftRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Gift, error) {
	return r.get(r.uow.forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormGiftRepository) get(db *gorm.DB, id int64) (*domain.Gift, error) {
	var m GiftModel
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound("load gift", "gift", id, err)
	}
	return ToDomainGift(&m)
}

// DecrementStock 条件更新保证库存不会变为负数
func (r *GormGiftRepository) DecrementStock(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&GiftModel{}).
		Where("id = ? AND stock > 0", id).
		UpdateColumn("stock", gorm.Expr("stock - 1"))
	if res.Error != nil {
		return classify("decrement stock", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.OutOfStockError{GiftID: id}
	}
	return nil
}

func (r *GormGiftRepository) Create(ctx context.Context, gift *domain.Gift) error {
	m := FromDomainGift(gift)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return classify("create gift", err)
	}
	gift.ID = int64(m.ID)
	gift.CreatedAt = m.CreatedAt
	return nil
}
