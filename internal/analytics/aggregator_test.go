package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donorpulse/donor-analytics/internal/models"
)

func day(d int, hour int) time.Time {
	return time.Date(2025, 3, d, hour, 0, 0, 0, time.UTC)
}

// fixtureInputs: three donations across two days, one refund, two spend rows.
func fixtureInputs() Inputs {
	return Inputs{
		Transactions: []*models.Transaction{
			{ID: "d1", Type: models.TransactionDonation, Amount: 50, Fee: 2.5, NetAmount: 47.5,
				DonorID: "alice", Refcode: "spring_meta", CampaignID: "camp-meta", CreativeID: "cr-1",
				OccurredAt: day(1, 9)},
			{ID: "d2", Type: models.TransactionDonation, Amount: 100, Fee: 5, NetAmount: 95,
				DonorID: "bob", Refcode: "spring_sms", CampaignID: "camp-sms", IsRecurring: true,
				OccurredAt: day(1, 15)},
			{ID: "d3", Type: models.TransactionDonation, Amount: 75, Fee: 3.75, NetAmount: 71.25,
				DonorID: "alice", OccurredAt: day(2, 10)},
			{ID: "r1", Type: models.TransactionRefund, Amount: 25, NetAmount: -25,
				DonorID: "bob", OccurredAt: day(2, 12)},
		},
		Spend: []*models.SpendRecord{
			{ID: "s1", Platform: models.PlatformMeta, CampaignID: "camp-meta", CreativeID: "cr-1",
				Date: day(1, 0), Spend: 30},
			{ID: "s2", Platform: models.PlatformSMS, CampaignID: "camp-sms",
				Date: day(2, 0), Spend: 20},
		},
		Mappings: map[string]*models.AttributionMapping{
			"spring_meta": {Refcode: "spring_meta", Platform: models.PlatformMeta, CampaignID: "camp-meta"},
			"spring_sms":  {Refcode: "spring_sms", Platform: models.PlatformSMS, CampaignID: "camp-sms"},
		},
		Location: time.UTC,
	}
}

func TestComputeMetricsKPIs(t *testing.T) {
	out := ComputeMetrics(fixtureInputs())
	k := out.KPIs

	assert.Equal(t, 225.0, k.TotalRaised)
	assert.InDelta(t, 188.75, k.TotalNetRevenue, 1e-9)
	assert.Equal(t, 25.0, k.TotalRefunds)
	assert.InDelta(t, 11.25, k.TotalFees, 1e-9)
	assert.Equal(t, 50.0, k.TotalSpend)
	assert.Equal(t, int64(3), k.DonationCount)
	assert.Equal(t, int64(1), k.RefundCount)
	assert.Equal(t, int64(2), k.UniqueDonors)
	assert.InDelta(t, 75.0, k.AvgDonation, 1e-9)
	assert.InDelta(t, 25.0/225.0*100, k.RefundRate, 1e-9)
	assert.InDelta(t, 11.25/225.0*100, k.FeePercentage, 1e-9)
	assert.InDelta(t, 100.0/3.0, k.RecurringPercentage, 1e-9)
	assert.InDelta(t, (188.75-50)/50, k.ROI, 1e-9)
}

func TestComputeMetricsEmptyInput(t *testing.T) {
	out := ComputeMetrics(Inputs{Location: time.UTC})

	assert.Equal(t, KPIs{}, out.KPIs)
	assert.Empty(t, out.TimeSeries)
	assert.Empty(t, out.Channels)
	for _, line := range out.Sparklines {
		assert.Empty(t, line)
	}
}

// A filter range over an empty transaction set must not fabricate
// zero-filled series days.
func TestComputeMetricsEmptyWithDateRange(t *testing.T) {
	out := ComputeMetrics(Inputs{
		Filter: Filter{
			StartDate: day(1, 0),
			EndDate:   day(10, 0),
		},
		Location: time.UTC,
	})
	assert.Empty(t, out.TimeSeries)
	assert.Equal(t, KPIs{}, out.KPIs)
}

func TestComputeMetricsCampaignFilter(t *testing.T) {
	in := fixtureInputs()
	in.Filter = Filter{CampaignID: "camp-meta"}
	out := ComputeMetrics(in)
	k := out.KPIs

	// Only d1 survives the donation filter; the refund is never
	// campaign-filtered and still subtracts in full.
	assert.Equal(t, 50.0, k.TotalRaised)
	assert.InDelta(t, 22.5, k.TotalNetRevenue, 1e-9)
	assert.Equal(t, 25.0, k.TotalRefunds)
	assert.Equal(t, int64(1), k.DonationCount)
	assert.Equal(t, int64(1), k.RefundCount)
	assert.Equal(t, 30.0, k.TotalSpend)
}

func TestComputeMetricsCreativeFilterDropsSMSSpend(t *testing.T) {
	in := fixtureInputs()
	in.Filter = Filter{CreativeID: "cr-1"}
	out := ComputeMetrics(in)

	// SMS spend has no creative mapping; a creative filter excludes it
	// entirely instead of partially counting it.
	assert.Equal(t, 30.0, out.KPIs.TotalSpend)
	assert.Equal(t, 50.0, out.KPIs.TotalRaised)
}

func TestComputeMetricsDateFilterAppliesToRefunds(t *testing.T) {
	in := fixtureInputs()
	in.Filter = Filter{StartDate: day(1, 0), EndDate: day(1, 0)}
	out := ComputeMetrics(in)
	k := out.KPIs

	// March 2 refund falls outside the range, so day 1 stands alone.
	assert.Equal(t, 150.0, k.TotalRaised)
	assert.Equal(t, 0.0, k.TotalRefunds)
	assert.InDelta(t, 142.5, k.TotalNetRevenue, 1e-9)
	require.Len(t, out.TimeSeries, 1)
	assert.Equal(t, "2025-03-01", out.TimeSeries[0].Date)
}

func TestComputeMetricsSeriesSumsToNetRevenue(t *testing.T) {
	out := ComputeMetrics(fixtureInputs())

	var sum float64
	for _, p := range out.TimeSeries {
		sum += p.NetDonations
	}
	assert.InDelta(t, out.KPIs.TotalNetRevenue, sum, 1e-9)
}

func TestComputeMetricsTimeSeries(t *testing.T) {
	out := ComputeMetrics(fixtureInputs())
	require.Len(t, out.TimeSeries, 2)

	p1 := out.TimeSeries[0]
	assert.Equal(t, "2025-03-01", p1.Date)
	assert.Equal(t, int64(2), p1.DonationCount)
	assert.Equal(t, 150.0, p1.DonationAmount)
	assert.InDelta(t, 142.5, p1.DonationNet, 1e-9)
	assert.Equal(t, 0.0, p1.RefundAmount)
	assert.Equal(t, 30.0, p1.Spend)

	p2 := out.TimeSeries[1]
	assert.Equal(t, "2025-03-02", p2.Date)
	assert.Equal(t, int64(1), p2.DonationCount)
	// Refunds are bucketed on their own date and rendered signed negative.
	assert.Equal(t, -25.0, p2.RefundAmount)
	assert.InDelta(t, 71.25-25, p2.NetDonations, 1e-9)
	assert.Equal(t, 20.0, p2.Spend)
}

func TestComputeMetricsGapDaysAreZeroFilled(t *testing.T) {
	in := fixtureInputs()
	in.Transactions = append(in.Transactions, &models.Transaction{
		ID: "d4", Type: models.TransactionDonation, Amount: 10, NetAmount: 10,
		OccurredAt: day(5, 9),
	})
	out := ComputeMetrics(in)

	require.Len(t, out.TimeSeries, 5)
	assert.Equal(t, "2025-03-03", out.TimeSeries[2].Date)
	assert.Equal(t, int64(0), out.TimeSeries[2].DonationCount)
	assert.Equal(t, 0.0, out.TimeSeries[2].NetDonations)
}

func TestComputeMetricsChannelBreakdown(t *testing.T) {
	out := ComputeMetrics(fixtureInputs())
	require.Len(t, out.Channels, 3)

	// Sorted by amount descending.
	assert.Equal(t, string(models.PlatformSMS), out.Channels[0].Channel)
	assert.Equal(t, 100.0, out.Channels[0].Amount)
	assert.Equal(t, ChannelUnattributed, out.Channels[1].Channel)
	assert.Equal(t, 75.0, out.Channels[1].Amount)
	assert.Equal(t, string(models.PlatformMeta), out.Channels[2].Channel)
	assert.Equal(t, 50.0, out.Channels[2].Amount)

	var pct float64
	for _, c := range out.Channels {
		pct += c.Percentage
	}
	assert.InDelta(t, 100.0, pct, 1e-9)
}

func TestComputeMetricsSparklinesMatchSeries(t *testing.T) {
	out := ComputeMetrics(fixtureInputs())

	require.Len(t, out.Sparklines[SparklineRaised], len(out.TimeSeries))
	for i, p := range out.TimeSeries {
		assert.Equal(t, p.DonationAmount, out.Sparklines[SparklineRaised][i])
		assert.Equal(t, p.NetDonations, out.Sparklines[SparklineNetRevenue][i])
		assert.Equal(t, float64(p.DonationCount), out.Sparklines[SparklineDonations][i])
		assert.Equal(t, -p.RefundAmount, out.Sparklines[SparklineRefunds][i])
		assert.Equal(t, p.Spend, out.Sparklines[SparklineSpend][i])
	}
}

func TestComputeMetricsGuardedRatios(t *testing.T) {
	// Refund-only input: every ratio site must resolve to 0, never NaN.
	out := ComputeMetrics(Inputs{
		Transactions: []*models.Transaction{
			{ID: "r", Type: models.TransactionRefund, Amount: 25, NetAmount: -25, OccurredAt: day(1, 8)},
		},
		Location: time.UTC,
	})
	k := out.KPIs

	assert.Equal(t, 0.0, k.AvgDonation)
	assert.Equal(t, 0.0, k.RefundRate)
	assert.Equal(t, 0.0, k.FeePercentage)
	assert.Equal(t, 0.0, k.RecurringPercentage)
	assert.Equal(t, 0.0, k.ROI)
	assert.Equal(t, 25.0, k.TotalRefunds)
	assert.InDelta(t, -25.0, k.TotalNetRevenue, 1e-9)
}

func TestComputeMetricsROIZeroWithoutSpend(t *testing.T) {
	in := fixtureInputs()
	in.Spend = nil
	out := ComputeMetrics(in)
	assert.Equal(t, 0.0, out.KPIs.ROI)
	assert.Equal(t, 0.0, out.KPIs.TotalSpend)
}
