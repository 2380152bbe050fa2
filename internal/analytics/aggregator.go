package analytics

import (
	"sort"
	"time"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// ChannelUnattributed is the breakdown bucket for donations whose refcode
// resolves to no mapping.
const ChannelUnattributed = "unattributed"

// Filter is the dashboard's active selection. Campaign/creative restrict
// donations and spend only; the date range restricts everything.
type Filter struct {
	CampaignID string    `json:"campaign_id,omitempty"`
	CreativeID string    `json:"creative_id,omitempty"`
	StartDate  time.Time `json:"start_date,omitempty"`
	EndDate    time.Time `json:"end_date,omitempty"`
}

// Inputs carries the already-fetched collections a metrics pass works over.
// Mappings is keyed by refcode.
type Inputs struct {
	Transactions []*models.Transaction
	Spend        []*models.SpendRecord
	Mappings     map[string]*models.AttributionMapping
	Filter       Filter
	Location     *time.Location
}

// KPIs is the flat numeric record the dashboard header renders.
type KPIs struct {
	TotalRaised         float64 `json:"total_raised"`
	TotalNetRevenue     float64 `json:"total_net_revenue"`
	TotalRefunds        float64 `json:"total_refunds"`
	TotalFees           float64 `json:"total_fees"`
	TotalSpend          float64 `json:"total_spend"`
	DonationCount       int64   `json:"donation_count"`
	RefundCount         int64   `json:"refund_count"`
	UniqueDonors        int64   `json:"unique_donors"`
	AvgDonation         float64 `json:"avg_donation"`
	RefundRate          float64 `json:"refund_rate"`
	FeePercentage       float64 `json:"fee_percentage"`
	RecurringPercentage float64 `json:"recurring_percentage"`
	ROI                 float64 `json:"roi"`
}

// TimeSeriesPoint is one organization-local calendar day. RefundAmount is
// signed negative; NetDonations is that day's donation net minus that day's
// refund net, so the series sums exactly to TotalNetRevenue.
type TimeSeriesPoint struct {
	Date           string  `json:"date"`
	DonationCount  int64   `json:"donation_count"`
	DonationAmount float64 `json:"donation_amount"`
	DonationNet    float64 `json:"donation_net"`
	RefundAmount   float64 `json:"refund_amount"`
	NetDonations   float64 `json:"net_donations"`
	Spend          float64 `json:"spend"`
}

// ChannelSlice is one row of the attribution-platform breakdown.
type ChannelSlice struct {
	Channel    string  `json:"channel"`
	Amount     float64 `json:"amount"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DashboardMetrics is the full aggregation output.
type DashboardMetrics struct {
	KPIs       KPIs                 `json:"kpis"`
	TimeSeries []TimeSeriesPoint    `json:"time_series"`
	Channels   []ChannelSlice       `json:"channels"`
	Sparklines map[string][]float64 `json:"sparklines"`
}

// Sparkline keys. Values are sourced from the time series, never recomputed,
// so sparkline totals always equal the matching KPI totals.
const (
	SparklineRaised     = "total_raised"
	SparklineNetRevenue = "net_revenue"
	SparklineDonations  = "donations"
	SparklineRefunds    = "refunds"
	SparklineSpend      = "spend"
)

// ComputeMetrics turns raw transaction and spend rows into KPI totals, a
// per-day time series, a channel breakdown and sparklines. It is a pure
// transform; an empty input yields all-zero KPIs and an empty series.
func ComputeMetrics(in Inputs) *DashboardMetrics {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	donations, refunds := partition(in.Transactions, in.Filter, loc)
	spend := filterSpend(in.Spend, in.Filter, loc)

	out := &DashboardMetrics{
		TimeSeries: []TimeSeriesPoint{},
		Channels:   []ChannelSlice{},
		Sparklines: map[string][]float64{},
	}

	out.KPIs = computeKPIs(donations, refunds, spend)
	out.TimeSeries = buildTimeSeries(donations, refunds, spend, in.Filter, loc)
	out.Channels = buildChannelBreakdown(donations, in.Mappings, out.KPIs.TotalRaised)
	out.Sparklines = buildSparklines(out.TimeSeries)

	return out
}

// partition splits transactions into the filtered donation set and the
// refund/cancellation set per the metric contract. The campaign/creative
// filter applies to donations only: refunds carry no attribution of their
// own and always stay global. The date range applies to both sets.
func partition(txs []*models.Transaction, f Filter, loc *time.Location) (donations, refunds []*models.Transaction) {
	for _, t := range txs {
		if t == nil || t.OccurredAt.IsZero() {
			continue
		}
		if !inDateRange(t.OccurredAt, f, loc) {
			continue
		}
		switch {
		case t.IsDonation():
			if f.CampaignID != "" && t.CampaignID != f.CampaignID {
				continue
			}
			if f.CreativeID != "" && t.CreativeID != f.CreativeID {
				continue
			}
			donations = append(donations, t)
		case t.IsReversal():
			refunds = append(refunds, t)
		}
	}
	return donations, refunds
}

// filterSpend applies the filter to spend rows. A spend source lacking the
// granularity of an active filter is excluded entirely, never partially
// counted: SMS spend has no creative mapping, so a creative filter drops it.
func filterSpend(rows []*models.SpendRecord, f Filter, loc *time.Location) []*models.SpendRecord {
	result := make([]*models.SpendRecord, 0, len(rows))
	for _, s := range rows {
		if s == nil || s.Date.IsZero() {
			continue
		}
		if !inDateRange(s.Date, f, loc) {
			continue
		}
		if f.CreativeID != "" && s.CreativeID != f.CreativeID {
			continue
		}
		if f.CampaignID != "" && s.CampaignID != f.CampaignID {
			continue
		}
		result = append(result, s)
	}
	return result
}

func inDateRange(t time.Time, f Filter, loc *time.Location) bool {
	key := DayKey(t, loc)
	if !f.StartDate.IsZero() && key < DayKey(f.StartDate, loc) {
		return false
	}
	if !f.EndDate.IsZero() && key > DayKey(f.EndDate, loc) {
		return false
	}
	return true
}

func computeKPIs(donations, refunds []*models.Transaction, spend []*models.SpendRecord) KPIs {
	k := KPIs{
		TotalRaised:     SumMetric(MetricGrossRaised, donations),
		TotalRefunds:    SumMetric(MetricRefunds, refunds),
		TotalNetRevenue: NetRevenue(donations, refunds),
		DonationCount:   int64(len(donations)),
		RefundCount:     int64(len(refunds)),
	}

	donors := make(map[string]struct{})
	var recurring int64
	for _, d := range donations {
		if d.DonorID != "" {
			donors[d.DonorID] = struct{}{}
		}
		if d.IsRecurring {
			recurring++
		}
		k.TotalFees += d.Fee
	}
	k.UniqueDonors = int64(len(donors))

	for _, s := range spend {
		k.TotalSpend += s.Spend
	}

	// Every ratio site resolves division by zero to 0, never NaN/Inf.
	if k.DonationCount > 0 {
		k.AvgDonation = k.TotalRaised / float64(k.DonationCount)
		k.RecurringPercentage = float64(recurring) / float64(k.DonationCount) * 100
	}
	if k.TotalRaised > 0 {
		k.RefundRate = k.TotalRefunds / k.TotalRaised * 100
		k.FeePercentage = k.TotalFees / k.TotalRaised * 100
	}
	if k.TotalSpend > 0 {
		k.ROI = (k.TotalNetRevenue - k.TotalSpend) / k.TotalSpend
	}

	return k
}

func buildTimeSeries(donations, refunds []*models.Transaction, spend []*models.SpendRecord, f Filter, loc *time.Location) []TimeSeriesPoint {
	at := func(t *models.Transaction) time.Time { return t.OccurredAt }
	donationDays := BucketByDay(donations, at, loc)
	refundDays := BucketByDay(refunds, at, loc)
	spendDays := BucketByDay(spend, func(s *models.SpendRecord) time.Time { return s.Date }, loc)

	if len(donationDays) == 0 && len(refundDays) == 0 {
		return []TimeSeriesPoint{}
	}

	startKey, endKey := seriesRange(f, loc, donationDays, refundDays)
	if startKey == "" {
		return []TimeSeriesPoint{}
	}

	start, err := time.ParseInLocation(dayKeyLayout, startKey, loc)
	if err != nil {
		return []TimeSeriesPoint{}
	}

	var series []TimeSeriesPoint
	for d := start; ; d = d.AddDate(0, 0, 1) {
		key := d.Format(dayKeyLayout)
		if key > endKey {
			break
		}

		p := TimeSeriesPoint{Date: key}
		for _, t := range donationDays[key] {
			p.DonationCount++
			p.DonationAmount += t.Amount
			p.DonationNet += t.NetAmount
		}
		refundNet := SumMetric(MetricRefunds, refundDays[key])
		p.RefundAmount = -refundNet
		p.NetDonations = p.DonationNet - refundNet
		for _, s := range spendDays[key] {
			p.Spend += s.Spend
		}
		series = append(series, p)
	}
	return series
}

// seriesRange picks the day span for the time series: the requested filter
// range when present, the data extent otherwise. Day keys sort lexically.
func seriesRange(f Filter, loc *time.Location, buckets ...map[string][]*models.Transaction) (string, string) {
	var minKey, maxKey string
	for _, b := range buckets {
		for key := range b {
			if minKey == "" || key < minKey {
				minKey = key
			}
			if key > maxKey {
				maxKey = key
			}
		}
	}

	startKey, endKey := minKey, maxKey
	if !f.StartDate.IsZero() {
		startKey = DayKey(f.StartDate, loc)
	}
	if !f.EndDate.IsZero() {
		endKey = DayKey(f.EndDate, loc)
	}
	if startKey == "" || endKey == "" || startKey > endKey {
		return "", ""
	}
	return startKey, endKey
}

func buildChannelBreakdown(donations []*models.Transaction, mappings map[string]*models.AttributionMapping, totalRaised float64) []ChannelSlice {
	type bucket struct {
		amount float64
		count  int64
	}
	byChannel := make(map[string]*bucket)

	for _, d := range donations {
		channel := ChannelUnattributed
		if d.Refcode != "" {
			if m, ok := mappings[d.Refcode]; ok && m != nil && m.Platform != "" {
				channel = string(m.Platform)
			}
		}
		b, ok := byChannel[channel]
		if !ok {
			b = &bucket{}
			byChannel[channel] = b
		}
		b.amount += d.Amount
		b.count++
	}

	slices := make([]ChannelSlice, 0, len(byChannel))
	for name, b := range byChannel {
		slice := ChannelSlice{Channel: name, Amount: b.amount, Count: b.count}
		if totalRaised > 0 {
			slice.Percentage = b.amount / totalRaised * 100
		}
		slices = append(slices, slice)
	}

	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Amount != slices[j].Amount {
			return slices[i].Amount > slices[j].Amount
		}
		return slices[i].Channel < slices[j].Channel
	})
	return slices
}

func buildSparklines(series []TimeSeriesPoint) map[string][]float64 {
	lines := map[string][]float64{
		SparklineRaised:     make([]float64, 0, len(series)),
		SparklineNetRevenue: make([]float64, 0, len(series)),
		SparklineDonations:  make([]float64, 0, len(series)),
		SparklineRefunds:    make([]float64, 0, len(series)),
		SparklineSpend:      make([]float64, 0, len(series)),
	}
	for _, p := range series {
		lines[SparklineRaised] = append(lines[SparklineRaised], p.DonationAmount)
		lines[SparklineNetRevenue] = append(lines[SparklineNetRevenue], p.NetDonations)
		lines[SparklineDonations] = append(lines[SparklineDonations], float64(p.DonationCount))
		lines[SparklineRefunds] = append(lines[SparklineRefunds], -p.RefundAmount)
		lines[SparklineSpend] = append(lines[SparklineSpend], p.Spend)
	}
	return lines
}
