package attribution

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

type reconcilerFixture struct {
	txRepo       *storage.InMemoryTransactionRepo
	mappingRepo  *storage.InMemoryMappingRepo
	campaignRepo *storage.InMemoryCampaignRepo
	creativeRepo *storage.InMemoryCreativeRepo
	reconciler   *Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		txRepo:       storage.NewInMemoryTransactionRepo(),
		mappingRepo:  storage.NewInMemoryMappingRepo(),
		campaignRepo: storage.NewInMemoryCampaignRepo(),
		creativeRepo: storage.NewInMemoryCreativeRepo(),
	}
	f.reconciler = NewReconciler(f.txRepo, f.mappingRepo, f.campaignRepo, f.creativeRepo, zap.NewNop(), nil)

	ctx := context.Background()
	require.NoError(t, f.campaignRepo.Upsert(ctx, &models.Campaign{
		ID:             "camp-spring",
		OrganizationID: "org-1",
		Name:           "Spring Appeal",
		Platform:       models.PlatformMeta,
		DestinationURL: "https://donate.example.org/give?refcode=spring24",
	}))
	require.NoError(t, f.creativeRepo.Upsert(ctx, &models.Creative{
		ID:             "cr-video",
		CampaignID:     "camp-spring",
		DestinationURL: "https://donate.example.org/give?refcode=spring24_video",
	}))
	return f
}

func (f *reconcilerFixture) addDonation(t *testing.T, id, refcode string) {
	t.Helper()
	require.NoError(t, f.txRepo.Insert(context.Background(), &models.Transaction{
		ID:             id,
		OrganizationID: "org-1",
		Type:           models.TransactionDonation,
		Amount:         50,
		NetAmount:      47.5,
		Refcode:        refcode,
		OccurredAt:     time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}))
}

func TestReconcileResolvesAndTags(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	f.addDonation(t, "d1", "spring24_video")
	f.addDonation(t, "d2", "spring24_video")
	f.addDonation(t, "d3", "spring24")

	result, err := f.reconciler.Reconcile(ctx, "org-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.RefcodesSeen)
	assert.Equal(t, 2, result.MappingsWritten)
	assert.Equal(t, 0, result.Unmatched)
	assert.Equal(t, 3, result.TransactionsTagged)

	// Creative-level resolution wins when the creative URL carries the code.
	m, err := f.mappingRepo.Get(ctx, "org-1", "spring24_video")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.MatchURLExact, m.MatchType)
	assert.Equal(t, "camp-spring", m.CampaignID)
	assert.Equal(t, "cr-video", m.CreativeID)
	assert.Equal(t, models.PlatformMeta, m.Platform)
	assert.Equal(t, "deterministic", m.AttributionType)

	tx, err := f.txRepo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "camp-spring", tx.CampaignID)
	assert.Equal(t, "cr-video", tx.CreativeID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	f.addDonation(t, "d1", "spring24")

	first, err := f.reconciler.Reconcile(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.MappingsWritten)

	// The donation is tagged after the first pass, so only the mapping
	// comparison happens on rerun and nothing is rewritten.
	f.addDonation(t, "d2", "spring24")
	second, err := f.reconciler.Reconcile(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.MappingsWritten)
	assert.Equal(t, 1, second.SkippedUnchanged)
	assert.Equal(t, 1, second.TransactionsTagged)
}

func TestReconcileKeepsDeterministicMapping(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	// A deterministic record for a refcode whose candidates would only
	// produce a heuristic match now.
	require.NoError(t, f.mappingRepo.Upsert(ctx, &models.AttributionMapping{
		ID:              "m-1",
		OrganizationID:  "org-1",
		Refcode:         "spring_appeal_gift",
		MatchType:       models.MatchURLExact,
		Confidence:      1.0,
		AttributionType: "deterministic",
		CampaignID:      "camp-spring",
	}))
	f.addDonation(t, "d1", "spring_appeal_gift")

	result, err := f.reconciler.Reconcile(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.MappingsWritten)
	assert.Equal(t, 1, result.SkippedDeterminism)

	// The prior record survives and still drives transaction tagging.
	m, err := f.mappingRepo.Get(ctx, "org-1", "spring_appeal_gift")
	require.NoError(t, err)
	assert.Equal(t, models.MatchURLExact, m.MatchType)

	tx, err := f.txRepo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "camp-spring", tx.CampaignID)
}

func TestReconcileUnmatchedRefcode(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	f.addDonation(t, "d1", "zz_qq_nothing")

	result, err := f.reconciler.Reconcile(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, 0, result.MappingsWritten)

	tx, err := f.txRepo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, tx.CampaignID)
}

func TestReconcileEmptyOrg(t *testing.T) {
	f := newReconcilerFixture(t)

	result, err := f.reconciler.Reconcile(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.RefcodesSeen)
	assert.Equal(t, 0, result.MappingsWritten)
}
