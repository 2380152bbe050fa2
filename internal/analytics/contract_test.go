package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/donorpulse/donor-analytics/internal/models"
)

func tx(typ models.TransactionType, amount, net float64) *models.Transaction {
	return &models.Transaction{
		ID:         "t",
		Type:       typ,
		Amount:     amount,
		NetAmount:  net,
		OccurredAt: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestSumMetric(t *testing.T) {
	donations := []*models.Transaction{
		tx(models.TransactionDonation, 50, 47.5),
		tx(models.TransactionDonation, 100, 95),
	}
	refunds := []*models.Transaction{
		tx(models.TransactionRefund, 25, -25),
		tx(models.TransactionCancellation, 10, 10),
	}

	assert.Equal(t, 150.0, SumMetric(MetricGrossRaised, donations))
	assert.Equal(t, 142.5, SumMetric(MetricNetRaised, donations))

	// Refund rows count at absolute value regardless of upstream sign
	// convention, and never leak into the raised metrics.
	assert.Equal(t, 35.0, SumMetric(MetricRefunds, refunds))
	assert.Equal(t, 0.0, SumMetric(MetricGrossRaised, refunds))
	assert.Equal(t, 0.0, SumMetric(MetricRefunds, donations))
}

func TestSumMetricDerivedAndUnknown(t *testing.T) {
	rows := []*models.Transaction{tx(models.TransactionDonation, 10, 9)}
	assert.Equal(t, 0.0, SumMetric(MetricNetRevenue, rows))
	assert.Equal(t, 0.0, SumMetric(Metric("bogus"), rows))
}

func TestNetRevenue(t *testing.T) {
	donations := []*models.Transaction{
		tx(models.TransactionDonation, 50, 47.5),
		tx(models.TransactionDonation, 100, 95),
		tx(models.TransactionDonation, 75, 71.25),
	}
	refunds := []*models.Transaction{
		tx(models.TransactionRefund, 25, -25),
	}

	assert.InDelta(t, 188.75, NetRevenue(donations, refunds), 1e-9)
	assert.Equal(t, 0.0, NetRevenue(nil, nil))
}
