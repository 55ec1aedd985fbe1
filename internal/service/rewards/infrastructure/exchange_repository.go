package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// GormExchangeRepository 是 domain.ExchangeRepository 的 GORM 实现
type GormExchangeRepository struct {
	db  *gorm.DB
	uow *GormUnitOfWork
}

func (r *GormExchangeRepository) Create(ctx context.Context, record *domain.ExchangeRecord) error {
	m := FromDomainExchangeRecord(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return classify("create exchange record", err)
	}
	record.ID = int64(m.ID)
	record.CreatedAt = m.CreatedAt
	record.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *GormExchangeRepository) Get(ctx context.Context, id int64) (*domain.ExchangeRecord, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *GormExchangeRepository) GetForUpdate(ctx context.Context, id int64) (*domain.ExchangeRecord, error) {
	return r.get(r.uow.forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormExchangeRepository) get(db *gorm.DB, id int64) (*domain.ExchangeRecord, error) {
	var m ExchangeRecordModel
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound("load exchange record", "exchange record", id, err)
	}
	return ToDomainExchangeRecord(&m)
}

// Update 只更新状态和物流单号
func (r *GormExchangeRepository) Update(ctx context.Context, record *domain.ExchangeRecord) error {
	res := r.db.WithContext(ctx).Model(&ExchangeRecordModel{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"status":          string(record.Status),
			"tracking_number": record.TrackingNumber,
		})
	if res.Error != nil {
		return classify("update exchange record", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "exchange record", ID: record.ID}
	}
	return nil
}

func (r *GormExchangeRepository) ListByUser(ctx context.Context, userID int64, page domain.Page) ([]*domain.ExchangeRecord, error) {
	page = page.Normalize()
	var models []ExchangeRecordModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Offset(page.Offset).Limit(page.Limit).
		Find(&models).Error
	if err != nil {
		return nil, classify("list exchange records", err)
	}

	out := make([]*domain.ExchangeRecord, 0, len(models))
	for i := range models {
		rec, err := ToDomainExchangeRecord(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
