package attribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donorpulse/donor-analytics/internal/models"
)

func touch(channel models.Channel, daysAgo int, base time.Time) models.Touchpoint {
	return models.Touchpoint{
		OrganizationID: "org-1",
		DonorID:        "alice",
		Channel:        channel,
		OccurredAt:     base.AddDate(0, 0, -daysAgo),
	}
}

func journeyFixture() []models.Touchpoint {
	conversion := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	return []models.Touchpoint{
		touch(models.ChannelAdImpression, 14, conversion),
		touch(models.ChannelAdClick, 7, conversion),
		touch(models.ChannelSMSClick, 1, conversion),
		touch(models.ChannelDonation, 0, conversion),
	}
}

func creditSum(credits []Credit) (weights, amounts float64) {
	for _, c := range credits {
		weights += c.Weight
		amounts += c.Credit
	}
	return
}

func TestAllocateAllModelsSumToAmount(t *testing.T) {
	result := Allocate(journeyFixture(), 100)
	require.Len(t, result, len(Models))

	for _, model := range Models {
		credits := result[model]
		require.Len(t, credits, 3, string(model))
		weights, amounts := creditSum(credits)
		assert.InDelta(t, 1.0, weights, 1e-9, string(model))
		assert.InDelta(t, 100.0, amounts, 1e-9, string(model))
	}
}

func TestAllocateFirstAndLastTouch(t *testing.T) {
	result := Allocate(journeyFixture(), 100)

	first := result[ModelFirstTouch]
	assert.Equal(t, 100.0, first[0].Credit)
	assert.Equal(t, 0.0, first[1].Credit)
	assert.Equal(t, 0.0, first[2].Credit)

	last := result[ModelLastTouch]
	assert.Equal(t, 0.0, last[0].Credit)
	assert.Equal(t, 100.0, last[2].Credit)
}

func TestAllocateLinear(t *testing.T) {
	result := Allocate(journeyFixture(), 90)
	for _, c := range result[ModelLinear] {
		assert.InDelta(t, 30.0, c.Credit, 1e-9)
	}
}

func TestAllocatePositionBased(t *testing.T) {
	result := Allocate(journeyFixture(), 100)
	credits := result[ModelPositionBased]

	assert.InDelta(t, 40.0, credits[0].Credit, 1e-9)
	assert.InDelta(t, 20.0, credits[1].Credit, 1e-9)
	assert.InDelta(t, 40.0, credits[2].Credit, 1e-9)
}

func TestAllocatePositionBasedTwoTouches(t *testing.T) {
	conversion := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	journey := []models.Touchpoint{
		touch(models.ChannelAdClick, 3, conversion),
		touch(models.ChannelSMSClick, 1, conversion),
		touch(models.ChannelDonation, 0, conversion),
	}

	credits := Allocate(journey, 100)[ModelPositionBased]
	require.Len(t, credits, 2)
	// No interior touchpoints: the ends renormalize to an even split.
	assert.InDelta(t, 50.0, credits[0].Credit, 1e-9)
	assert.InDelta(t, 50.0, credits[1].Credit, 1e-9)
}

func TestAllocateTimeDecayMonotonic(t *testing.T) {
	credits := Allocate(journeyFixture(), 100)[ModelTimeDecay]
	require.Len(t, credits, 3)

	// Later touchpoints carry strictly more weight.
	assert.Less(t, credits[0].Weight, credits[1].Weight)
	assert.Less(t, credits[1].Weight, credits[2].Weight)

	// Seven days is one half-life: the 14-day touch weighs a quarter of the
	// conversion-day baseline relative to the 7-day touch's half.
	assert.InDelta(t, credits[0].Weight*2, credits[1].Weight, 1e-9)
}

func TestAllocateSingleTouch(t *testing.T) {
	conversion := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	journey := []models.Touchpoint{
		touch(models.ChannelAdClick, 2, conversion),
		touch(models.ChannelDonation, 0, conversion),
	}

	result := Allocate(journey, 75)
	for _, model := range Models {
		credits := result[model]
		require.Len(t, credits, 1, string(model))
		assert.InDelta(t, 75.0, credits[0].Credit, 1e-9, string(model))
	}
}

func TestAllocateNoMarketingTouches(t *testing.T) {
	conversion := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	journey := []models.Touchpoint{touch(models.ChannelDonation, 0, conversion)}

	assert.Empty(t, Allocate(journey, 100))
	assert.Empty(t, Allocate(nil, 100))
}

func TestAllocateWithoutTrailingDonationEvent(t *testing.T) {
	conversion := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	journey := []models.Touchpoint{
		touch(models.ChannelAdImpression, 7, conversion),
		touch(models.ChannelAdClick, 0, conversion),
	}

	// Conversion time falls back to the last touchpoint.
	credits := Allocate(journey, 100)[ModelTimeDecay]
	require.Len(t, credits, 2)
	assert.InDelta(t, credits[0].Weight*2, credits[1].Weight, 1e-9)
}
