package infrastructure

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// defaultGiftStock 目录中未指定库存时使用的默认值
const defaultGiftStock int64 = 999

// Catalog 礼品与勋章的初始目录
type Catalog struct {
	Gifts  []GiftSeed  `yaml:"gifts"`
	Medals []MedalSeed `yaml:"medals"`
}

type GiftSeed struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	ImageURL         string `yaml:"image_url"`
	PointsRequired   int64  `yaml:"points_required"`
	RecoveryRequired string `yaml:"recovery_required"`
	Type             string `yaml:"type"`
	Stock            *int64 `yaml:"stock"`
	IsLimited        bool   `yaml:"is_limited"`
}

type MedalSeed struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Icon            string `yaml:"icon"`
	Rarity          string `yaml:"rarity"`
	UnlockCondition string `yaml:"unlock_condition"`
	TargetValue     *int64 `yaml:"target_value"`
}

// LoadCatalog 从 YAML 文件读取目录
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", path)
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errors.Wrapf(err, "parse catalog %s", path)
	}
	return &c, nil
}

func (s GiftSeed) toDomain() (*domain.Gift, error) {
	t, ok := domain.ParseGiftType(s.Type)
	if !ok {
		return nil, domain.InvalidArgument("gift %q has unknown type %q", s.Name, s.Type)
	}
	recovery := decimal.Zero
	if s.RecoveryRequired != "" {
		d, err := decimal.NewFromString(s.RecoveryRequired)
		if err != nil {
			return nil, domain.InvalidArgument("gift %q recovery_required: %v", s.Name, err)
		}
		recovery = d
	}
	if s.PointsRequired < 0 || recovery.IsNegative() {
		return nil, domain.InvalidArgument("gift %q has a negative price", s.Name)
	}
	stock := defaultGiftStock
	if s.Stock != nil {
		if *s.Stock < 0 {
			return nil, domain.InvalidArgument("gift %q has negative stock %d", s.Name, *s.Stock)
		}
		stock = *s.Stock
	}
	return &domain.Gift{
		Name:             s.Name,
		Description:      s.Description,
		ImageURL:         s.ImageURL,
		PointsRequired:   s.PointsRequired,
		RecoveryRequired: recovery,
		Type:             t,
		Stock:            stock,
		IsLimited:        s.IsLimited || t == domain.GiftTypeLimited,
	}, nil
}

func (s MedalSeed) toDomain() (*domain.Medal, error) {
	rarity, ok := domain.ParseRarity(s.Rarity)
	if !ok {
		return nil, domain.InvalidArgument("medal %q has unknown rarity %q", s.Name, s.Rarity)
	}
	return &domain.Medal{
		Name:            s.Name,
		Description:     s.Description,
		Icon:            s.Icon,
		Rarity:          rarity,
		UnlockCondition: s.UnlockCondition,
		TargetValue:     s.TargetValue,
	}, nil
}

// SeedCatalog 在礼品表或勋章表为空时写入目录，已有数据的表保持不变
func SeedCatalog(ctx context.Context, uow domain.UnitOfWork, c *Catalog) error {
	return uow.Transact(ctx, func(ctx context.Context, repos domain.Repositories) error {
		existingGifts, err := repos.Gifts.List(ctx, nil)
		if err != nil {
			return err
		}
		if len(existingGifts) == 0 {
			for _, seed := range c.Gifts {
				g, err := seed.toDomain()
				if err != nil {
					return err
				}
				if err := repos.Gifts.Create(ctx, g); err != nil {
					return err
				}
			}
			logger.Ctx(ctx).Info().Int("count", len(c.Gifts)).Msg("gift catalog seeded")
		}

		existingMedals, err := repos.Growth.ListMedals(ctx, nil)
		if err != nil {
			return err
		}
		if len(existingMedals) == 0 {
			for _, seed := range c.Medals {
				m, err := seed.toDomain()
				if err != nil {
					return err
				}
				if err := repos.Growth.CreateMedal(ctx, m); err != nil {
					return err
				}
			}
			logger.Ctx(ctx).Info().Int("count", len(c.Medals)).Msg("medal catalog seeded")
		}
		return nil
	})
}
