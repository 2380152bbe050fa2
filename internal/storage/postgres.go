package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// =============================================
// Transactions
// =============================================

type PostgresTransactionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTransactionRepo(pool *pgxpool.Pool) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{pool: pool}
}

const transactionColumns = `id, organization_id, type, amount, fee, net_amount, occurred_at,
	donor_id, refcode, source_campaign, is_recurring, campaign_id, creative_id, created_at`

func (r *PostgresTransactionRepo) Insert(ctx context.Context, t *models.Transaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, t.OrganizationID, t.Type, t.Amount, t.Fee, t.NetAmount, t.OccurredAt,
		t.DonorID, nullable(t.Refcode), nullable(t.SourceCampaign), t.IsRecurring,
		nullable(t.CampaignID), nullable(t.CreativeID), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *PostgresTransactionRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1
	`, id)
	t, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *PostgresTransactionRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE organization_id = $1 ORDER BY occurred_at
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *PostgresTransactionRepo) ListUnattributed(ctx context.Context, orgID string) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE organization_id = $1
		  AND type = 'donation'
		  AND refcode IS NOT NULL
		  AND campaign_id IS NULL
		ORDER BY occurred_at
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unattributed transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *PostgresTransactionRepo) SetAttribution(ctx context.Context, id, campaignID, creativeID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transactions SET campaign_id = $2, creative_id = $3 WHERE id = $1
	`, id, nullable(campaignID), nullable(creativeID))
	if err != nil {
		return fmt.Errorf("failed to set attribution: %w", err)
	}
	return nil
}

func collectTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	var result []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	var refcode, sourceCampaign, campaignID, creativeID *string
	if err := row.Scan(
		&t.ID, &t.OrganizationID, &t.Type, &t.Amount, &t.Fee, &t.NetAmount, &t.OccurredAt,
		&t.DonorID, &refcode, &sourceCampaign, &t.IsRecurring, &campaignID, &creativeID, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Refcode = deref(refcode)
	t.SourceCampaign = deref(sourceCampaign)
	t.CampaignID = deref(campaignID)
	t.CreativeID = deref(creativeID)
	return &t, nil
}

// =============================================
// Spend
// =============================================

type PostgresSpendRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSpendRepo(pool *pgxpool.Pool) *PostgresSpendRepo {
	return &PostgresSpendRepo{pool: pool}
}

func (r *PostgresSpendRepo) Insert(ctx context.Context, s *models.SpendRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO spend_records (id, organization_id, platform, campaign_id, creative_id, date, spend, conversions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, s.ID, s.OrganizationID, s.Platform, nullable(s.CampaignID), nullable(s.CreativeID),
		s.Date, s.Spend, s.Conversions, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert spend record: %w", err)
	}
	return nil
}

func (r *PostgresSpendRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.SpendRecord, error) {
	return r.list(ctx, `
		SELECT id, organization_id, platform, campaign_id, creative_id, date, spend, conversions, created_at
		FROM spend_records WHERE organization_id = $1 ORDER BY date
	`, orgID)
}

func (r *PostgresSpendRepo) ListByDateRange(ctx context.Context, orgID string, start, end time.Time) ([]*models.SpendRecord, error) {
	return r.list(ctx, `
		SELECT id, organization_id, platform, campaign_id, creative_id, date, spend, conversions, created_at
		FROM spend_records
		WHERE organization_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date
	`, orgID, start, end)
}

func (r *PostgresSpendRepo) list(ctx context.Context, query string, args ...any) ([]*models.SpendRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list spend records: %w", err)
	}
	defer rows.Close()

	var result []*models.SpendRecord
	for rows.Next() {
		var s models.SpendRecord
		var campaignID, creativeID *string
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Platform, &campaignID, &creativeID,
			&s.Date, &s.Spend, &s.Conversions, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.CampaignID = deref(campaignID)
		s.CreativeID = deref(creativeID)
		result = append(result, &s)
	}
	return result, rows.Err()
}

// =============================================
// Attribution mappings
// =============================================

type PostgresMappingRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMappingRepo(pool *pgxpool.Pool) *PostgresMappingRepo {
	return &PostgresMappingRepo{pool: pool}
}

const mappingColumns = `id, organization_id, refcode, match_type, confidence, attribution_type,
	campaign_id, creative_id, platform, destination_url, created_at, updated_at`

func (r *PostgresMappingRepo) Get(ctx context.Context, orgID, refcode string) (*models.AttributionMapping, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+mappingColumns+` FROM attribution_mappings
		WHERE organization_id = $1 AND refcode = $2
	`, orgID, refcode)
	m, err := scanMapping(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return m, nil
}

func (r *PostgresMappingRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.AttributionMapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mappingColumns+` FROM attribution_mappings
		WHERE organization_id = $1 ORDER BY refcode
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var result []*models.AttributionMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *PostgresMappingRepo) Upsert(ctx context.Context, m *models.AttributionMapping) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attribution_mappings (`+mappingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (organization_id, refcode) DO UPDATE SET
			match_type = EXCLUDED.match_type,
			confidence = EXCLUDED.confidence,
			attribution_type = EXCLUDED.attribution_type,
			campaign_id = EXCLUDED.campaign_id,
			creative_id = EXCLUDED.creative_id,
			platform = EXCLUDED.platform,
			destination_url = EXCLUDED.destination_url,
			updated_at = EXCLUDED.updated_at
	`, m.ID, m.OrganizationID, m.Refcode, m.MatchType, m.Confidence, m.AttributionType,
		nullable(m.CampaignID), nullable(m.CreativeID), nullable(string(m.Platform)),
		nullable(m.DestinationURL), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping: %w", err)
	}
	return nil
}

func scanMapping(row pgx.Row) (*models.AttributionMapping, error) {
	var m models.AttributionMapping
	var campaignID, creativeID, platform, destURL *string
	if err := row.Scan(
		&m.ID, &m.OrganizationID, &m.Refcode, &m.MatchType, &m.Confidence, &m.AttributionType,
		&campaignID, &creativeID, &platform, &destURL, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.CampaignID = deref(campaignID)
	m.CreativeID = deref(creativeID)
	m.Platform = models.Platform(deref(platform))
	m.DestinationURL = deref(destURL)
	return &m, nil
}

// =============================================
// Campaign catalog
// =============================================

type PostgresCampaignRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCampaignRepo(pool *pgxpool.Pool) *PostgresCampaignRepo {
	return &PostgresCampaignRepo{pool: pool}
}

func (r *PostgresCampaignRepo) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, platform, refcode_pattern, destination_url, status, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Platform, &c.RefcodePattern,
		&c.DestinationURL, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

func (r *PostgresCampaignRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, platform, refcode_pattern, destination_url, status, created_at, updated_at
		FROM campaigns WHERE organization_id = $1 ORDER BY id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var result []*models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Platform, &c.RefcodePattern,
			&c.DestinationURL, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

func (r *PostgresCampaignRepo) Upsert(ctx context.Context, c *models.Campaign) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO campaigns (id, organization_id, name, platform, refcode_pattern, destination_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			platform = EXCLUDED.platform,
			refcode_pattern = EXCLUDED.refcode_pattern,
			destination_url = EXCLUDED.destination_url,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.OrganizationID, c.Name, c.Platform, c.RefcodePattern,
		c.DestinationURL, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert campaign: %w", err)
	}
	return nil
}

// =============================================
// Creative catalog
// =============================================

type PostgresCreativeRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCreativeRepo(pool *pgxpool.Pool) *PostgresCreativeRepo {
	return &PostgresCreativeRepo{pool: pool}
}

func (r *PostgresCreativeRepo) GetByID(ctx context.Context, id string) (*models.Creative, error) {
	var cr models.Creative
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, name, destination_url, status, created_at, updated_at
		FROM creatives WHERE id = $1
	`, id).Scan(&cr.ID, &cr.CampaignID, &cr.Name, &cr.DestinationURL, &cr.Status, &cr.CreatedAt, &cr.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get creative: %w", err)
	}
	return &cr, nil
}

func (r *PostgresCreativeRepo) ListAll(ctx context.Context) ([]*models.Creative, error) {
	return r.list(ctx, `
		SELECT id, campaign_id, name, destination_url, status, created_at, updated_at
		FROM creatives ORDER BY id
	`)
}

func (r *PostgresCreativeRepo) ListByCampaign(ctx context.Context, campaignID string) ([]*models.Creative, error) {
	return r.list(ctx, `
		SELECT id, campaign_id, name, destination_url, status, created_at, updated_at
		FROM creatives WHERE campaign_id = $1 ORDER BY id
	`, campaignID)
}

func (r *PostgresCreativeRepo) list(ctx context.Context, query string, args ...any) ([]*models.Creative, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list creatives: %w", err)
	}
	defer rows.Close()

	var result []*models.Creative
	for rows.Next() {
		var cr models.Creative
		if err := rows.Scan(&cr.ID, &cr.CampaignID, &cr.Name, &cr.DestinationURL,
			&cr.Status, &cr.CreatedAt, &cr.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &cr)
	}
	return result, rows.Err()
}

func (r *PostgresCreativeRepo) Upsert(ctx context.Context, cr *models.Creative) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO creatives (id, campaign_id, name, destination_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			destination_url = EXCLUDED.destination_url,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, cr.ID, cr.CampaignID, cr.Name, cr.DestinationURL, cr.Status, cr.CreatedAt, cr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert creative: %w", err)
	}
	return nil
}

// =============================================
// Helpers
// =============================================

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
