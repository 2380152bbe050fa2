package analytics

import (
	"math"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// Metric names every aggregation path computes from the same contract table.
type Metric string

const (
	MetricGrossRaised Metric = "gross_raised"
	MetricNetRaised   Metric = "net_raised"
	MetricRefunds     Metric = "refunds"
	// MetricNetRevenue is derived: NET_RAISED minus REFUNDS. It has no row
	// rule of its own.
	MetricNetRevenue Metric = "net_revenue"
)

// MetricField selects which monetary column of a transaction feeds a metric.
type MetricField string

const (
	FieldAmount    MetricField = "amount"
	FieldNetAmount MetricField = "net_amount"
)

// MetricRule defines which rows a metric includes and how each row is valued.
type MetricRule struct {
	Field         MetricField
	Types         []models.TransactionType
	AbsoluteValue bool
}

// Contract is the canonical field/sign/filter table. Donations and
// refunds/cancellations are disjoint row sets; a row is never counted in
// both a raised metric and a refund metric.
var Contract = map[Metric]MetricRule{
	MetricGrossRaised: {
		Field: FieldAmount,
		Types: []models.TransactionType{models.TransactionDonation},
	},
	MetricNetRaised: {
		Field: FieldNetAmount,
		Types: []models.TransactionType{models.TransactionDonation},
	},
	MetricRefunds: {
		Field:         FieldNetAmount,
		Types:         []models.TransactionType{models.TransactionRefund, models.TransactionCancellation},
		AbsoluteValue: true,
	},
}

// Includes reports whether the rule counts the given transaction.
func (r MetricRule) Includes(t *models.Transaction) bool {
	for _, tt := range r.Types {
		if t.Type == tt {
			return true
		}
	}
	return false
}

// Value returns the rule's contribution for a single transaction.
func (r MetricRule) Value(t *models.Transaction) float64 {
	var v float64
	switch r.Field {
	case FieldAmount:
		v = t.Amount
	case FieldNetAmount:
		v = t.NetAmount
	}
	if r.AbsoluteValue {
		v = math.Abs(v)
	}
	return v
}

// SumMetric folds a metric over a transaction slice per the contract table.
// Unknown metrics and the derived net_revenue metric sum to zero here; use
// NetRevenue for the derivation.
func SumMetric(metric Metric, txs []*models.Transaction) float64 {
	rule, ok := Contract[metric]
	if !ok {
		return 0
	}
	var sum float64
	for _, t := range txs {
		if rule.Includes(t) {
			sum += rule.Value(t)
		}
	}
	return sum
}

// NetRevenue derives NET_REVENUE from a donation set and a refund set.
// Refunds are always the full, unfiltered set; a refund transaction carries
// no campaign attribution of its own, so campaign/creative filters never
// shrink the subtracted total.
func NetRevenue(donations, refunds []*models.Transaction) float64 {
	return SumMetric(MetricNetRaised, donations) - SumMetric(MetricRefunds, refunds)
}
