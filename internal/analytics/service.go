package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/donorpulse/donor-analytics/internal/metrics"
	"github.com/donorpulse/donor-analytics/internal/models"
	"github.com/donorpulse/donor-analytics/internal/storage"
)

// DashboardService loads an organization's rows and runs the aggregation
// pass over them. The service owns data access; ComputeMetrics stays a pure
// transform.
type DashboardService struct {
	txRepo      storage.TransactionRepo
	spendRepo   storage.SpendRepo
	mappingRepo storage.MappingRepo
	loc         *time.Location
	metrics     *metrics.Metrics
}

func NewDashboardService(
	txRepo storage.TransactionRepo,
	spendRepo storage.SpendRepo,
	mappingRepo storage.MappingRepo,
	loc *time.Location,
	m *metrics.Metrics,
) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		txRepo:      txRepo,
		spendRepo:   spendRepo,
		mappingRepo: mappingRepo,
		loc:         loc,
		metrics:     m,
	}
}

// Dashboard computes the full dashboard payload for an organization.
func (s *DashboardService) Dashboard(ctx context.Context, orgID string, filter Filter) (*DashboardMetrics, error) {
	start := time.Now()

	txs, err := s.txRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	spend, err := s.spendRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load spend: %w", err)
	}
	mappings, err := s.mappingRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}

	byRefcode := make(map[string]*models.AttributionMapping, len(mappings))
	for _, m := range mappings {
		byRefcode[m.Refcode] = m
	}

	out := ComputeMetrics(Inputs{
		Transactions: txs,
		Spend:        spend,
		Mappings:     byRefcode,
		Filter:       filter,
		Location:     s.loc,
	})

	if s.metrics != nil {
		filtered := filter.CampaignID != "" || filter.CreativeID != "" ||
			!filter.StartDate.IsZero() || !filter.EndDate.IsZero()
		s.metrics.RecordDashboardCompute(filtered, len(txs), time.Since(start))
	}
	return out, nil
}

// Location exposes the organization's reporting timezone.
func (s *DashboardService) Location() *time.Location {
	return s.loc
}
