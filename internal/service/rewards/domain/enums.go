package domain

// RecordKind 流水类型
type RecordKind string

const (
	RecordKindLotteryWin   RecordKind = "lottery_win"
	RecordKindLotteryCost  RecordKind = "lottery_cost"
	RecordKindRecharge     RecordKind = "recharge"
	RecordKindWithdraw     RecordKind = "withdraw"
	RecordKindReward       RecordKind = "reward"
	RecordKindGiftExchange RecordKind = "gift_exchange"
)

// ParseRecordKind 把字符串解析为 RecordKind，未知值返回 false
func ParseRecordKind(s string) (RecordKind, bool) {
	switch k := RecordKind(s); k {
	case RecordKindLotteryWin, RecordKindLotteryCost, RecordKindRecharge,
		RecordKindWithdraw, RecordKindReward, RecordKindGiftExchange:
		return k, true
	}
	return "", false
}

// IsAdjustment 是否为外部协作方可以直接发起的调整类型
func (k RecordKind) IsAdjustment() bool {
	return k == RecordKindReward || k == RecordKindRecharge || k == RecordKindWithdraw
}

// GiftType 礼品类型
type GiftType string

const (
	GiftTypePhysical GiftType = "physical"
	GiftTypeVirtual  GiftType = "virtual"
	GiftTypeLimited  GiftType = "limited"
)

func ParseGiftType(s string) (GiftType, bool) {
	switch t := GiftType(s); t {
	case GiftTypePhysical, GiftTypeVirtual, GiftTypeLimited:
		return t, true
	}
	return "", false
}

// Rarity 勋章稀有度
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

func ParseRarity(s string) (Rarity, bool) {
	switch r := Rarity(s); r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return r, true
	}
	return "", false
}
