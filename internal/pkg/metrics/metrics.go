// Package metrics 定义了成长服务暴露给 Prometheus 的业务指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerMutations 按流水类型统计成功的余额变更次数
	LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Name:      "ledger_mutations_total",
		Help:      "Number of committed balance mutations by record kind.",
	}, []string{"kind"})

	// ExchangeOutcomes 按结果统计礼品兑换
	ExchangeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Name:      "gift_exchanges_total",
		Help:      "Gift exchange attempts by outcome.",
	}, []string{"outcome"})

	// LotteryPrizes 按奖项统计抽奖结果
	LotteryPrizes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Name:      "lottery_prizes_total",
		Help:      "Lottery draws by prize name.",
	}, []string{"prize"})

	// TxConflictRetries 统计因并发冲突而重试的事务次数
	TxConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rewards",
		Name:      "tx_conflict_retries_total",
		Help:      "Transactions re-executed after a concurrency conflict.",
	})
)
