// Package metrics holds the Prometheus collectors of the betting ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WagersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twod_wager_batches_placed_total",
		Help: "Wager batches committed.",
	})

	WagerRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twod_wager_records_placed_total",
		Help: "Individual number wagers committed.",
	})

	StakeDebited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twod_stake_debited_total",
		Help: "Sum of committed wager totals, in the smallest currency unit.",
	})

	WagerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twod_wager_rejections_total",
		Help: "Rejected wager submissions by reason.",
	}, []string{"reason"})

	SettledRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twod_settled_records_total",
		Help: "Wager records resolved by settlement, by outcome.",
	}, []string{"session", "outcome"})

	PayoutCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twod_payout_credited_total",
		Help: "Sum of settlement credits.",
	})

	SettlementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twod_settlement_failures_total",
		Help: "Wager records left pending because settlement could not commit them.",
	})

	StoreConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twod_store_conflicts_total",
		Help: "Optimistic commits that lost a race and were retried.",
	}, []string{"operation"})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "twod_settlement_duration_seconds",
		Help:    "Wall time of a settlement run.",
		Buckets: prometheus.DefBuckets,
	})
)
