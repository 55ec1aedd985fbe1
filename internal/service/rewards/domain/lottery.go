package domain

import (
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// probabilityTolerance 概率之和与 1 的允许误差
const probabilityTolerance = 1e-6

// Prize 奖池中的一个奖项
type Prize struct {
	Name        string          `yaml:"name"`
	Amount      decimal.Decimal `yaml:"amount"`
	Probability float64         `yaml:"probability"`
}

// PrizeTable 按顺序排列的奖池
type PrizeTable []Prize

// DefaultPrizeTable 返回默认奖池
func DefaultPrizeTable() PrizeTable {
	return PrizeTable{
		{Name: "谢谢参与", Amount: decimal.Zero, Probability: 0.50},
		{Name: "小额回血", Amount: decimal.NewFromInt(5), Probability: 0.30},
		{Name: "中额回血", Amount: decimal.NewFromInt(20), Probability: 0.15},
		{Name: "大额回血", Amount: decimal.NewFromInt(100), Probability: 0.04},
		{Name: "超级回血", Amount: decimal.NewFromInt(500), Probability: 0.009},
		{Name: "巨额回血", Amount: decimal.NewFromInt(1000), Probability: 0.001},
	}
}

// Validate 奖池必须非空，概率非负且总和为 1，金额非负
func (t PrizeTable) Validate() error {
	if len(t) == 0 {
		return InvalidArgument("prize table is empty")
	}
	var sum float64
	for _, p := range t {
		if p.Probability < 0 || math.IsNaN(p.Probability) {
			return InvalidArgument("prize %q has negative probability", p.Name)
		}
		if p.Amount.IsNegative() {
			return InvalidArgument("prize %q has negative amount", p.Name)
		}
		sum += p.Probability
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return InvalidArgument("prize probabilities sum to %v, want 1", sum)
	}
	return nil
}

// Pick 按累积概率选出 r 落入的奖项。
// 概率为零的奖项永远不会被选中；r 超出所有累积区间时返回第一个奖项。
func (t PrizeTable) Pick(r float64) Prize {
	var cumulative float64
	for _, p := range t {
		if p.Probability <= 0 {
			continue
		}
		cumulative += p.Probability
		if r <= cumulative {
			return p
		}
	}
	return t[0]
}

// RandomSource 提供 [0, 1) 上的均匀随机数
type RandomSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// LotteryEngine 抽奖引擎，只负责选出奖项，不接触余额
type LotteryEngine struct {
	table PrizeTable
	rnd   RandomSource
}

// NewLotteryEngine 校验奖池并创建引擎，rnd 为 nil 时使用全局随机源
func NewLotteryEngine(table PrizeTable, rnd RandomSource) (*LotteryEngine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = globalRand{}
	}
	return &LotteryEngine{table: table, rnd: rnd}, nil
}

// Draw 抽取一次
func (e *LotteryEngine) Draw() Prize {
	return e.table.Pick(e.rnd.Float64())
}

// Table 返回奖池
func (e *LotteryEngine) Table() PrizeTable {
	return e.table
}
