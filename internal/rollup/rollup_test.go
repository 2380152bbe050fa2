package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/donorpulse/donor-analytics/internal/models"
	"github.com/donorpulse/donor-analytics/internal/storage"
)

func seedTransactions(t *testing.T, repo *storage.InMemoryTransactionRepo) {
	t.Helper()
	ctx := context.Background()
	rows := []*models.Transaction{
		{ID: "d1", OrganizationID: "org-1", Type: models.TransactionDonation,
			Amount: 50, NetAmount: 47.5, OccurredAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "d2", OrganizationID: "org-1", Type: models.TransactionDonation,
			Amount: 100, NetAmount: 95, OccurredAt: time.Date(2025, 5, 1, 15, 0, 0, 0, time.UTC)},
		{ID: "r1", OrganizationID: "org-1", Type: models.TransactionRefund,
			Amount: 25, NetAmount: -25, OccurredAt: time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, r := range rows {
		require.NoError(t, repo.Insert(ctx, r))
	}
}

// A nil Redis client degrades to recomputing from storage on every read.
func TestDailyWithoutRedis(t *testing.T) {
	repo := storage.NewInMemoryTransactionRepo()
	seedTransactions(t, repo)
	cache := NewCache(nil, repo, time.UTC, time.Minute, zap.NewNop(), nil)

	r, err := cache.Daily(context.Background(), "org-1", "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.DonationCount)
	assert.Equal(t, 150.0, r.GrossRaised)
	assert.InDelta(t, 142.5, r.NetRaised, 1e-9)
	assert.Equal(t, 0.0, r.Refunds)
	assert.InDelta(t, 142.5, r.NetRevenue, 1e-9)
}

func TestDailyRefundDay(t *testing.T) {
	repo := storage.NewInMemoryTransactionRepo()
	seedTransactions(t, repo)
	cache := NewCache(nil, repo, time.UTC, time.Minute, zap.NewNop(), nil)

	r, err := cache.Daily(context.Background(), "org-1", "2025-05-02")
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.DonationCount)
	assert.Equal(t, 25.0, r.Refunds)
	assert.InDelta(t, -25.0, r.NetRevenue, 1e-9)
}

func TestDailyEmptyDay(t *testing.T) {
	repo := storage.NewInMemoryTransactionRepo()
	seedTransactions(t, repo)
	cache := NewCache(nil, repo, time.UTC, time.Minute, zap.NewNop(), nil)

	r, err := cache.Daily(context.Background(), "org-1", "2025-05-09")
	require.NoError(t, err)
	assert.Equal(t, &DailyRollup{Date: "2025-05-09"}, r)
}

func TestRange(t *testing.T) {
	repo := storage.NewInMemoryTransactionRepo()
	seedTransactions(t, repo)
	cache := NewCache(nil, repo, time.UTC, time.Minute, zap.NewNop(), nil)

	rollups, err := cache.Range(context.Background(), "org-1", "2025-05-01", "2025-05-03")
	require.NoError(t, err)
	require.Len(t, rollups, 3)
	assert.Equal(t, "2025-05-01", rollups[0].Date)
	assert.Equal(t, "2025-05-03", rollups[2].Date)

	// Range totals equal the sum of per-day rollups, refunds included.
	var net float64
	for _, r := range rollups {
		net += r.NetRevenue
	}
	assert.InDelta(t, 142.5-25, net, 1e-9)
}

func TestRangeInvalidDays(t *testing.T) {
	cache := NewCache(nil, storage.NewInMemoryTransactionRepo(), time.UTC, time.Minute, zap.NewNop(), nil)

	_, err := cache.Range(context.Background(), "org-1", "bogus", "2025-05-03")
	assert.Error(t, err)
	_, err = cache.Range(context.Background(), "org-1", "2025-05-01", "bogus")
	assert.Error(t, err)
}

// Day boundaries follow the organization's zone, not UTC.
func TestDailyUsesOrgTimezone(t *testing.T) {
	nyc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	repo := storage.NewInMemoryTransactionRepo()
	require.NoError(t, repo.Insert(context.Background(), &models.Transaction{
		ID: "d1", OrganizationID: "org-1", Type: models.TransactionDonation,
		Amount: 10, NetAmount: 10,
		OccurredAt: time.Date(2025, 1, 15, 0, 30, 0, 0, time.UTC),
	}))
	cache := NewCache(nil, repo, nyc, time.Minute, zap.NewNop(), nil)

	r, err := cache.Daily(context.Background(), "org-1", "2025-01-14")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.DonationCount)

	r, err = cache.Daily(context.Background(), "org-1", "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.DonationCount)
}
