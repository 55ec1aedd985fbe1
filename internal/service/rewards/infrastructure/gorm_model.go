package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBalanceModel 对应 user_balances 表，每个用户一行
type UserBalanceModel struct {
	ID              uint            `gorm:"primaryKey"`
	UserID          int64           `gorm:"uniqueIndex;not null"`
	Points          int64           `gorm:"not null"`
	RecoveryBalance decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Version         int64           `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (UserBalanceModel) TableName() string {
	return "user_balances"
}

// LedgerRecordModel 对应 ledger_records 表，只追加不修改
type LedgerRecordModel struct {
	ID          uint            `gorm:"primaryKey"`
	UserID      int64           `gorm:"index:idx_ledger_user_created,priority:1;not null"`
	Kind        string          `gorm:"type:varchar(32);index;not null"`
	Points      int64           `gorm:"not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Description string          `gorm:"type:varchar(255)"`
	CreatedAt   time.Time       `gorm:"index:idx_ledger_user_created,priority:2"`
}

func (LedgerRecordModel) TableName() string {
	return "ledger_records"
}

// GiftModel 对应 gifts 表
type GiftModel struct {
	ID               uint            `gorm:"primaryKey"`
	Name             string          `gorm:"type:varchar(128);not null"`
	Description      string          `gorm:"type:text"`
	ImageURL         string          `gorm:"type:varchar(512)"`
	PointsRequired   int64           `gorm:"not null"`
	RecoveryRequired decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Type             string          `gorm:"type:varchar(16);index;not null"`
	Stock            int64           `gorm:"not null"`
	IsLimited        bool            `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (GiftModel) TableName() string {
	return "gifts"
}

// ExchangeRecordModel 对应 exchange_records 表
type ExchangeRecordModel struct {
	ID              uint            `gorm:"primaryKey"`
	UserID          int64           `gorm:"index;not null"`
	GiftID          int64           `gorm:"not null"`
	GiftName        string          `gorm:"type:varchar(128);not null"`
	GiftType        string          `gorm:"type:varchar(16);not null"`
	PointsUsed      int64           `gorm:"not null"`
	RecoveryUsed    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ShippingAddress *string         `gorm:"type:varchar(512)"`
	TrackingNumber  *string         `gorm:"type:varchar(64)"`
	Status          string          `gorm:"type:varchar(16);not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ExchangeRecordModel) TableName() string {
	return "exchange_records"
}

// MedalModel 对应 medals 表
type MedalModel struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"type:varchar(64);not null"`
	Description     string `gorm:"type:varchar(255)"`
	Icon            string `gorm:"type:varchar(64)"`
	Rarity          string `gorm:"type:varchar(16);index;not null"`
	UnlockCondition string `gorm:"type:varchar(255);not null"`
	TargetValue     *int64
	CreatedAt       time.Time
}

func (MedalModel) TableName() string {
	return "medals"
}

// UserMedalModel 对应 user_medals 表，(user_id, medal_id) 唯一
type UserMedalModel struct {
	ID         uint  `gorm:"primaryKey"`
	UserID     int64 `gorm:"uniqueIndex:idx_user_medal,priority:1;not null"`
	MedalID    int64 `gorm:"uniqueIndex:idx_user_medal,priority:2;not null"`
	Progress   int64 `gorm:"not null"`
	IsUnlocked bool  `gorm:"not null"`
	UnlockedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (UserMedalModel) TableName() string {
	return "user_medals"
}

// UserLevelModel 对应 user_levels 表
type UserLevelModel struct {
	ID        uint  `gorm:"primaryKey"`
	UserID    int64 `gorm:"uniqueIndex;not null"`
	Level     int   `gorm:"not null"`
	Exp       int64 `gorm:"not null"`
	Version   int64 `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserLevelModel) TableName() string {
	return "user_levels"
}

// allModels 是 AutoMigrate 需要建表的全部模型
var allModels = []interface{}{
	&UserBalanceModel{},
	&LedgerRecordModel{},
	&GiftModel{},
	&ExchangeRecordModel{},
	&MedalModel{},
	&UserMedalModel{},
	&UserLevelModel{},
}
