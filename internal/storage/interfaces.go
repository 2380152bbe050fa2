package storage

import (
	"context"
	"time"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// =============================================
// TRANSACTION REPOSITORY
// =============================================

// TransactionRepo defines operations for transaction storage. Transactions
// are immutable once their attributed fields are written and are never
// deleted.
type TransactionRepo interface {
	Insert(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Transaction, error)
	ListUnattributed(ctx context.Context, orgID string) ([]*models.Transaction, error)

	// SetAttribution stamps the resolved campaign/creative onto a donation.
	SetAttribution(ctx context.Context, id, campaignID, creativeID string) error
}

// =============================================
// SPEND REPOSITORY
// =============================================

// SpendRepo defines operations for ad/SMS spend storage.
type SpendRepo interface {
	Insert(ctx context.Context, s *models.SpendRecord) error
	ListByOrg(ctx context.Context, orgID string) ([]*models.SpendRecord, error)
	ListByDateRange(ctx context.Context, orgID string, start, end time.Time) ([]*models.SpendRecord, error)
}

// =============================================
// MAPPING REPOSITORY
// =============================================

// MappingRepo defines operations for attribution mapping storage. Upsert
// replaces the row for (organization_id, refcode); rows are superseded,
// never physically deleted.
type MappingRepo interface {
	Get(ctx context.Context, orgID, refcode string) (*models.AttributionMapping, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.AttributionMapping, error)
	Upsert(ctx context.Context, m *models.AttributionMapping) error
}

// =============================================
// CAMPAIGN / CREATIVE CATALOGS
// =============================================

// CampaignRepo defines operations for the campaign catalog.
type CampaignRepo interface {
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Campaign, error)
	Upsert(ctx context.Context, c *models.Campaign) error
}

// CreativeRepo defines operations for the creative catalog.
type CreativeRepo interface {
	GetByID(ctx context.Context, id string) (*models.Creative, error)
	ListAll(ctx context.Context) ([]*models.Creative, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]*models.Creative, error)
	Upsert(ctx context.Context, cr *models.Creative) error
}

// =============================================
// TOUCHPOINT STORE
// =============================================

// TouchpointStore defines operations for donor journey events. Journeys are
// returned ordered by occurrence.
type TouchpointStore interface {
	Save(ctx context.Context, tp *models.Touchpoint) error
	Journey(ctx context.Context, orgID, donorID string) ([]models.Touchpoint, error)
}
