package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donorpulse/donor-analytics/internal/models"
)

func TestInMemoryTransactionRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryTransactionRepo()

	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, &models.Transaction{
		ID: "d1", OrganizationID: "org-1", Type: models.TransactionDonation,
		Refcode: "spring24", OccurredAt: occurred,
	}))
	require.NoError(t, repo.Insert(ctx, &models.Transaction{
		ID: "d2", OrganizationID: "org-1", Type: models.TransactionDonation,
		Refcode: "spring24", CampaignID: "camp-1", OccurredAt: occurred,
	}))
	require.NoError(t, repo.Insert(ctx, &models.Transaction{
		ID: "r1", OrganizationID: "org-1", Type: models.TransactionRefund,
		OccurredAt: occurred,
	}))

	got, err := repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "spring24", got.Refcode)

	// Mutating the returned copy must not touch stored state.
	got.Refcode = "mutated"
	again, err := repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "spring24", again.Refcode)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := repo.ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "d1", all[0].ID)

	// Only unattributed donations with a refcode qualify.
	pending, err := repo.ListUnattributed(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "d1", pending[0].ID)

	require.NoError(t, repo.SetAttribution(ctx, "d1", "camp-1", "cr-1"))
	pending, err = repo.ListUnattributed(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInMemorySpendRepoDateRange(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemorySpendRepo()

	for i, d := range []int{1, 5, 9} {
		require.NoError(t, repo.Insert(ctx, &models.SpendRecord{
			ID: string(rune('a' + i)), OrganizationID: "org-1",
			Platform: models.PlatformMeta, Spend: 10,
			Date: time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC),
		}))
	}

	rows, err := repo.ListByDateRange(ctx, "org-1",
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Date.Day())

	all, err := repo.ListByDateRange(ctx, "org-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInMemoryMappingRepoUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryMappingRepo()

	require.NoError(t, repo.Upsert(ctx, &models.AttributionMapping{
		OrganizationID: "org-1", Refcode: "spring24",
		MatchType: models.MatchFuzzy, Confidence: 0.4, CampaignID: "camp-1",
	}))
	require.NoError(t, repo.Upsert(ctx, &models.AttributionMapping{
		OrganizationID: "org-1", Refcode: "spring24",
		MatchType: models.MatchURLExact, Confidence: 1.0, CampaignID: "camp-2",
	}))

	// Upsert supersedes the row for the same (org, refcode) key.
	m, err := repo.Get(ctx, "org-1", "spring24")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.MatchURLExact, m.MatchType)
	assert.Equal(t, "camp-2", m.CampaignID)

	list, err := repo.ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other, err := repo.Get(ctx, "org-2", "spring24")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestInMemoryTouchpointStoreOrdersJourney(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryTouchpointStore()

	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	// Saved out of order; Journey returns them sorted by occurrence.
	for _, tp := range []models.Touchpoint{
		{OrganizationID: "org-1", DonorID: "alice", Channel: models.ChannelDonation, OccurredAt: base},
		{OrganizationID: "org-1", DonorID: "alice", Channel: models.ChannelAdImpression, OccurredAt: base.AddDate(0, 0, -7)},
		{OrganizationID: "org-1", DonorID: "alice", Channel: models.ChannelAdClick, OccurredAt: base.AddDate(0, 0, -2)},
	} {
		cp := tp
		require.NoError(t, store.Save(ctx, &cp))
	}

	journey, err := store.Journey(ctx, "org-1", "alice")
	require.NoError(t, err)
	require.Len(t, journey, 3)
	assert.Equal(t, models.ChannelAdImpression, journey[0].Channel)
	assert.Equal(t, models.ChannelAdClick, journey[1].Channel)
	assert.Equal(t, models.ChannelDonation, journey[2].Channel)

	empty, err := store.Journey(ctx, "org-1", "bob")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
