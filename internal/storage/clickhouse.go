package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// ClickHouseTouchpointStore persists donor journey events in ClickHouse.
// Touchpoint volume dwarfs everything else (every ad impression and SMS send
// lands here), so it gets the columnar store instead of Postgres.
type ClickHouseTouchpointStore struct {
	conn driver.Conn
}

func NewClickHouseTouchpointStore(conn driver.Conn) *ClickHouseTouchpointStore {
	return &ClickHouseTouchpointStore{conn: conn}
}

func (s *ClickHouseTouchpointStore) Save(ctx context.Context, tp *models.Touchpoint) error {
	if tp == nil {
		return nil
	}
	err := s.conn.Exec(ctx, `
		INSERT INTO touchpoints (organization_id, donor_id, channel, campaign_id, creative_id, refcode, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tp.OrganizationID, tp.DonorID, string(tp.Channel), tp.CampaignID, tp.CreativeID, tp.Refcode, tp.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert touchpoint: %w", err)
	}
	return nil
}

// SaveBatch inserts touchpoints through a prepared batch, the efficient path
// for ingestion-sized writes.
func (s *ClickHouseTouchpointStore) SaveBatch(ctx context.Context, tps []*models.Touchpoint) error {
	if len(tps) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO touchpoints (organization_id, donor_id, channel, campaign_id, creative_id, refcode, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare touchpoint batch: %w", err)
	}
	for _, tp := range tps {
		if tp == nil {
			continue
		}
		if err := batch.Append(tp.OrganizationID, tp.DonorID, string(tp.Channel),
			tp.CampaignID, tp.CreativeID, tp.Refcode, tp.OccurredAt); err != nil {
			return fmt.Errorf("failed to append touchpoint: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send touchpoint batch: %w", err)
	}
	return nil
}

func (s *ClickHouseTouchpointStore) Journey(ctx context.Context, orgID, donorID string) ([]models.Touchpoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT organization_id, donor_id, channel, campaign_id, creative_id, refcode, occurred_at
		FROM touchpoints
		WHERE organization_id = ? AND donor_id = ?
		ORDER BY occurred_at
	`, orgID, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journey: %w", err)
	}
	defer rows.Close()

	var result []models.Touchpoint
	for rows.Next() {
		var tp models.Touchpoint
		var channel string
		var occurredAt time.Time
		if err := rows.Scan(&tp.OrganizationID, &tp.DonorID, &channel,
			&tp.CampaignID, &tp.CreativeID, &tp.Refcode, &occurredAt); err != nil {
			return nil, err
		}
		tp.Channel = models.Channel(channel)
		tp.OccurredAt = occurredAt
		result = append(result, tp)
	}
	return result, rows.Err()
}
