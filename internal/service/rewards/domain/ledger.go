package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// UserBalance 用户的积分与回血金余额，每个用户一行
type UserBalance struct {
	UserID          int64
	Points          int64
	RecoveryBalance decimal.Decimal
	Version         int64 // 乐观并发版本号，每次写入 +1
	UpdatedAt       time.Time
}

// Shortfall 计算扣除 points/amount 后各货币的缺口，不缺时为零。
// points 不能为 math.MinInt64，Delta.Validate 保证这一点。
func (b *UserBalance) Shortfall(points int64, amount decimal.Decimal) (int64, decimal.Decimal) {
	var pts int64
	if points < 0 && -points > b.Points {
		pts = -points - b.Points
	}
	amt := decimal.Zero
	if next := b.RecoveryBalance.Add(amount); next.IsNegative() {
		amt = next.Neg()
	}
	return pts, amt
}

// CheckCredit 拒绝会使积分超过 int64 上限的入账
func (b *UserBalance) CheckCredit(points int64) error {
	if points > 0 && b.Points > math.MaxInt64-points {
		return InvalidArgument("points credit %d overflows balance", points)
	}
	return nil
}

// LedgerRecord 一次余额变更的不可变流水。
// Points 与 Amount 是带符号的变化量，Amount 为回血金部分。
type LedgerRecord struct {
	ID          int64
	UserID      int64
	Kind        RecordKind
	Points      int64
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// Delta 一次余额变更请求
type Delta struct {
	Points      int64
	Amount      decimal.Decimal
	Kind        RecordKind
	Description string
}

// Validate 检查变更是否可执行
func (d Delta) Validate() error {
	if _, ok := ParseRecordKind(string(d.Kind)); !ok {
		return InvalidArgument("unknown record kind %q", d.Kind)
	}
	if d.Points == math.MinInt64 {
		return InvalidArgument("points delta out of range")
	}
	if d.Points == 0 && d.Amount.IsZero() {
		return InvalidArgument("delta must change at least one currency")
	}
	if !d.Amount.Equal(d.Amount.Round(2)) {
		return InvalidArgument("amount %s has more than two decimal places", d.Amount)
	}
	return nil
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page 分页参数，Limit 为零时取默认值，超过上限时截断
type Page struct {
	Offset int
	Limit  int
}

// Normalize 返回修正后的分页参数
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

// RecordQuery 流水查询条件
type RecordQuery struct {
	Kind       *RecordKind
	PointsOnly bool // 只返回积分发生变化的流水
	Page       Page
}
