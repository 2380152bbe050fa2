package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// In-memory implementations back the service when PostgreSQL or ClickHouse
// are unavailable, and double as test fixtures.

// =============================================
// Transactions
// =============================================

type InMemoryTransactionRepo struct {
	mu  sync.RWMutex
	txs map[string]*models.Transaction

	// insertion order per org, so listings are stable
	orderByOrg map[string][]string
}

func NewInMemoryTransactionRepo() *InMemoryTransactionRepo {
	return &InMemoryTransactionRepo{
		txs:        make(map[string]*models.Transaction),
		orderByOrg: make(map[string][]string),
	}
}

func (r *InMemoryTransactionRepo) Insert(ctx context.Context, t *models.Transaction) error {
	if t == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	if _, exists := r.txs[t.ID]; !exists {
		r.orderByOrg[t.OrganizationID] = append(r.orderByOrg[t.OrganizationID], t.ID)
	}
	r.txs[t.ID] = &cp
	return nil
}

func (r *InMemoryTransactionRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.txs[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *InMemoryTransactionRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.orderByOrg[orgID]
	result := make([]*models.Transaction, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.txs[id]; ok {
			cp := *t
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *InMemoryTransactionRepo) ListUnattributed(ctx context.Context, orgID string) ([]*models.Transaction, error) {
	all, _ := r.ListByOrg(ctx, orgID)
	result := make([]*models.Transaction, 0)
	for _, t := range all {
		if t.IsDonation() && t.Refcode != "" && t.CampaignID == "" {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *InMemoryTransactionRepo) SetAttribution(ctx context.Context, id, campaignID, creativeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.txs[id]; ok {
		t.CampaignID = campaignID
		t.CreativeID = creativeID
	}
	return nil
}

// =============================================
// Spend
// =============================================

type InMemorySpendRepo struct {
	mu   sync.RWMutex
	rows []*models.SpendRecord
}

func NewInMemorySpendRepo() *InMemorySpendRepo {
	return &InMemorySpendRepo{}
}

func (r *InMemorySpendRepo) Insert(ctx context.Context, s *models.SpendRecord) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *InMemorySpendRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.SpendRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.SpendRecord, 0)
	for _, s := range r.rows {
		if s.OrganizationID == orgID {
			cp := *s
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *InMemorySpendRepo) ListByDateRange(ctx context.Context, orgID string, start, end time.Time) ([]*models.SpendRecord, error) {
	all, _ := r.ListByOrg(ctx, orgID)
	result := make([]*models.SpendRecord, 0, len(all))
	for _, s := range all {
		if !start.IsZero() && s.Date.Before(start) {
			continue
		}
		if !end.IsZero() && s.Date.After(end) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

// =============================================
// Attribution mappings
// =============================================

type InMemoryMappingRepo struct {
	mu       sync.RWMutex
	mappings map[mappingKey]*models.AttributionMapping
}

type mappingKey struct {
	orgID   string
	refcode string
}

func NewInMemoryMappingRepo() *InMemoryMappingRepo {
	return &InMemoryMappingRepo{
		mappings: make(map[mappingKey]*models.AttributionMapping),
	}
}

func (r *InMemoryMappingRepo) Get(ctx context.Context, orgID, refcode string) (*models.AttributionMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.mappings[mappingKey{orgID, refcode}]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *InMemoryMappingRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.AttributionMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.AttributionMapping, 0)
	for key, m := range r.mappings {
		if key.orgID == orgID {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Refcode < result[j].Refcode })
	return result, nil
}

func (r *InMemoryMappingRepo) Upsert(ctx context.Context, m *models.AttributionMapping) error {
	if m == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.mappings[mappingKey{m.OrganizationID, m.Refcode}] = &cp
	return nil
}

// =============================================
// Campaign catalog
// =============================================

type InMemoryCampaignRepo struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
}

func NewInMemoryCampaignRepo() *InMemoryCampaignRepo {
	return &InMemoryCampaignRepo{campaigns: make(map[string]*models.Campaign)}
}

func (r *InMemoryCampaignRepo) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.campaigns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *InMemoryCampaignRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.Campaign, 0)
	for _, c := range r.campaigns {
		if c.OrganizationID == orgID {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *InMemoryCampaignRepo) Upsert(ctx context.Context, c *models.Campaign) error {
	if c == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

// =============================================
// Creative catalog
// =============================================

type InMemoryCreativeRepo struct {
	mu        sync.RWMutex
	creatives map[string]*models.Creative
}

func NewInMemoryCreativeRepo() *InMemoryCreativeRepo {
	return &InMemoryCreativeRepo{creatives: make(map[string]*models.Creative)}
}

func (r *InMemoryCreativeRepo) GetByID(ctx context.Context, id string) (*models.Creative, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cr, ok := r.creatives[id]; ok {
		cp := *cr
		return &cp, nil
	}
	return nil, nil
}

func (r *InMemoryCreativeRepo) ListAll(ctx context.Context) ([]*models.Creative, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.Creative, 0, len(r.creatives))
	for _, cr := range r.creatives {
		cp := *cr
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *InMemoryCreativeRepo) ListByCampaign(ctx context.Context, campaignID string) ([]*models.Creative, error) {
	all, _ := r.ListAll(ctx)
	result := make([]*models.Creative, 0)
	for _, cr := range all {
		if cr.CampaignID == campaignID {
			result = append(result, cr)
		}
	}
	return result, nil
}

func (r *InMemoryCreativeRepo) Upsert(ctx context.Context, cr *models.Creative) error {
	if cr == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cr
	r.creatives[cr.ID] = &cp
	return nil
}

// =============================================
// Touchpoints
// =============================================

type InMemoryTouchpointStore struct {
	mu     sync.RWMutex
	events map[journeyKey][]models.Touchpoint
}

type journeyKey struct {
	orgID   string
	donorID string
}

func NewInMemoryTouchpointStore() *InMemoryTouchpointStore {
	return &InMemoryTouchpointStore{events: make(map[journeyKey][]models.Touchpoint)}
}

func (s *InMemoryTouchpointStore) Save(ctx context.Context, tp *models.Touchpoint) error {
	if tp == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := journeyKey{tp.OrganizationID, tp.DonorID}
	s.events[key] = append(s.events[key], *tp)
	return nil
}

func (s *InMemoryTouchpointStore) Journey(ctx context.Context, orgID, donorID string) ([]models.Touchpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[journeyKey{orgID, donorID}]
	result := make([]models.Touchpoint, len(events))
	copy(result, events)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result, nil
}
