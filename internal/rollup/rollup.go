package rollup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/donorpulse/donor-analytics/internal/analytics"
	"github.com/donorpulse/donor-analytics/internal/metrics"
	"github.com/donorpulse/donor-analytics/internal/models"
	"github.com/donorpulse/donor-analytics/internal/storage"
)

// DailyRollup is the canonical per-day summary served to dashboard widgets.
// Every field follows the metric contract, so a rollup read and a full
// aggregation pass over the same rows agree to the cent.
type DailyRollup struct {
	Date          string  `json:"date"`
	DonationCount int64   `json:"donation_count"`
	GrossRaised   float64 `json:"gross_raised"`
	NetRaised     float64 `json:"net_raised"`
	Refunds       float64 `json:"refunds"`
	NetRevenue    float64 `json:"net_revenue"`
}

// Cache is a Redis read-through cache over daily rollups. Reads fail open:
// a Redis error degrades to recomputing from storage, never to a failed
// request.
type Cache struct {
	client  *redis.Client
	txRepo  storage.TransactionRepo
	loc     *time.Location
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCache(client *redis.Client, txRepo storage.TransactionRepo, loc *time.Location, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if loc == nil {
		loc = time.UTC
	}
	return &Cache{
		client:  client,
		txRepo:  txRepo,
		loc:     loc,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func rollupKey(orgID, day string) string {
	return fmt.Sprintf("rollup:net:%s:%s", orgID, day)
}

// Daily returns the rollup for one organization-local day, serving from Redis
// when possible and recomputing from the transaction store otherwise.
func (c *Cache) Daily(ctx context.Context, orgID, day string) (*DailyRollup, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, rollupKey(orgID, day)).Bytes()
		if err == nil {
			var r DailyRollup
			if jerr := json.Unmarshal(raw, &r); jerr == nil {
				if c.metrics != nil {
					c.metrics.RecordRollupCacheHit()
				}
				return &r, nil
			}
			// Corrupt entry, fall through to recompute.
		} else if err != redis.Nil {
			c.logger.Warn("rollup cache read failed", zap.String("day", day), zap.Error(err))
		}
	}
	if c.metrics != nil {
		c.metrics.RecordRollupCacheMiss()
	}

	r, err := c.compute(ctx, orgID, day)
	if err != nil {
		return nil, err
	}
	c.store(ctx, orgID, day, r)
	return r, nil
}

// Range returns rollups for each day in [start, end], both inclusive day keys.
func (c *Cache) Range(ctx context.Context, orgID, start, end string) ([]*DailyRollup, error) {
	from, err := time.ParseInLocation("2006-01-02", start, c.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid start day %q: %w", start, err)
	}
	if _, err := time.ParseInLocation("2006-01-02", end, c.loc); err != nil {
		return nil, fmt.Errorf("invalid end day %q: %w", end, err)
	}

	var result []*DailyRollup
	for d := from; ; d = d.AddDate(0, 0, 1) {
		key := analytics.DayKey(d, c.loc)
		if key > end {
			break
		}
		r, err := c.Daily(ctx, orgID, key)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

// Invalidate drops the cached rollup for a day, forcing the next read to
// recompute. Called after reconciliation changes attribution.
func (c *Cache) Invalidate(ctx context.Context, orgID, day string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, rollupKey(orgID, day)).Err(); err != nil {
		c.logger.Warn("rollup cache invalidation failed", zap.String("day", day), zap.Error(err))
	}
}

func (c *Cache) compute(ctx context.Context, orgID, day string) (*DailyRollup, error) {
	txs, err := c.txRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	buckets := analytics.BucketByDay(txs, func(t *models.Transaction) time.Time { return t.OccurredAt }, c.loc)
	rows := buckets[day]

	var donations, refunds []*models.Transaction
	for _, t := range rows {
		switch {
		case t.IsDonation():
			donations = append(donations, t)
		case t.IsReversal():
			refunds = append(refunds, t)
		}
	}

	return &DailyRollup{
		Date:          day,
		DonationCount: int64(len(donations)),
		GrossRaised:   analytics.SumMetric(analytics.MetricGrossRaised, donations),
		NetRaised:     analytics.SumMetric(analytics.MetricNetRaised, donations),
		Refunds:       analytics.SumMetric(analytics.MetricRefunds, refunds),
		NetRevenue:    analytics.NetRevenue(donations, refunds),
	}, nil
}

func (c *Cache) store(ctx context.Context, orgID, day string, r *DailyRollup) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, rollupKey(orgID, day), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("rollup cache write failed", zap.String("day", day), zap.Error(err))
	}
}
