package attribution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/donorpulse/donor-analytics/internal/metrics"
	"github.com/donorpulse/donor-analytics/internal/models"
	"github.com/donorpulse/donor-analytics/internal/storage"
)

// Reconciler runs the nightly attribution pass: collect unattributed donation
// refcodes, resolve each against the creative and campaign catalogs, and write
// the surviving mappings through the guard. The pass is idempotent; running it
// twice against unchanged catalogs produces zero writes the second time.
type Reconciler struct {
	txRepo       storage.TransactionRepo
	mappingRepo  storage.MappingRepo
	campaignRepo storage.CampaignRepo
	creativeRepo storage.CreativeRepo
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// ReconcileResult summarizes a single reconciliation pass.
type ReconcileResult struct {
	OrganizationID     string        `json:"organization_id"`
	RefcodesSeen       int           `json:"refcodes_seen"`
	MappingsWritten    int           `json:"mappings_written"`
	SkippedDeterminism int           `json:"skipped_deterministic"`
	SkippedUnchanged   int           `json:"skipped_unchanged"`
	Unmatched          int           `json:"unmatched"`
	TransactionsTagged int           `json:"transactions_tagged"`
	Duration           time.Duration `json:"duration"`
}

func NewReconciler(
	txRepo storage.TransactionRepo,
	mappingRepo storage.MappingRepo,
	campaignRepo storage.CampaignRepo,
	creativeRepo storage.CreativeRepo,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Reconciler {
	return &Reconciler{
		txRepo:       txRepo,
		mappingRepo:  mappingRepo,
		campaignRepo: campaignRepo,
		creativeRepo: creativeRepo,
		logger:       logger,
		metrics:      m,
	}
}

// Reconcile resolves every unattributed donation refcode for an organization.
func (r *Reconciler) Reconcile(ctx context.Context, orgID string) (*ReconcileResult, error) {
	start := time.Now()
	result := &ReconcileResult{OrganizationID: orgID}

	existing, err := r.mappingRepo.ListByOrg(ctx, orgID)
	if err != nil {
		r.recordRun("error", start)
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	guard := NewGuard(existing)

	campaigns, err := r.campaignRepo.ListByOrg(ctx, orgID)
	if err != nil {
		r.recordRun("error", start)
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}
	creatives, err := r.creativeRepo.ListAll(ctx)
	if err != nil {
		r.recordRun("error", start)
		return nil, fmt.Errorf("failed to load creatives: %w", err)
	}

	pending, err := r.txRepo.ListUnattributed(ctx, orgID)
	if err != nil {
		r.recordRun("error", start)
		return nil, fmt.Errorf("failed to load unattributed transactions: %w", err)
	}

	// Group transactions by refcode so each code is resolved once per pass.
	byRefcode := make(map[string][]*models.Transaction)
	for _, t := range pending {
		byRefcode[t.Refcode] = append(byRefcode[t.Refcode], t)
	}
	refcodes := make([]string, 0, len(byRefcode))
	for rc := range byRefcode {
		refcodes = append(refcodes, rc)
	}
	sort.Strings(refcodes)
	result.RefcodesSeen = len(refcodes)

	campaignByID := make(map[string]*models.Campaign, len(campaigns))
	for _, c := range campaigns {
		campaignByID[c.ID] = c
	}

	for _, refcode := range refcodes {
		if err := ctx.Err(); err != nil {
			r.recordRun("cancelled", start)
			return nil, err
		}

		match := r.resolve(refcode, campaigns, creatives)
		if match == nil {
			result.Unmatched++
			if r.metrics != nil {
				r.metrics.RecordUnmatched()
			}
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordMatch(string(match.MatchType))
		}

		mapping := r.buildMapping(orgID, refcode, match, campaignByID)
		authoritative := mapping

		switch decision := guard.Evaluate(mapping); decision {
		case DecisionWrite:
			if err := r.mappingRepo.Upsert(ctx, mapping); err != nil {
				r.recordRun("error", start)
				return nil, fmt.Errorf("failed to upsert mapping for %q: %w", refcode, err)
			}
			guard.Commit(mapping)
			result.MappingsWritten++
			if r.metrics != nil {
				r.metrics.RecordMappingWritten()
			}
		case DecisionSkipDeterministic:
			result.SkippedDeterminism++
			authoritative = guard.Existing(orgID, refcode)
			if r.metrics != nil {
				r.metrics.RecordGuardSkip(decision.String())
			}
			r.logger.Debug("kept deterministic mapping",
				zap.String("refcode", refcode),
				zap.String("candidate_match_type", string(match.MatchType)),
			)
		case DecisionSkipUnchanged:
			result.SkippedUnchanged++
			authoritative = guard.Existing(orgID, refcode)
			if r.metrics != nil {
				r.metrics.RecordGuardSkip(decision.String())
			}
		}

		// Tag transactions from whichever mapping won, so donations always
		// follow the authoritative record.
		if authoritative != nil && authoritative.CampaignID != "" {
			for _, t := range byRefcode[refcode] {
				if err := r.txRepo.SetAttribution(ctx, t.ID, authoritative.CampaignID, authoritative.CreativeID); err != nil {
					r.recordRun("error", start)
					return nil, fmt.Errorf("failed to tag transaction %s: %w", t.ID, err)
				}
				result.TransactionsTagged++
			}
		}
	}

	result.Duration = time.Since(start)
	r.recordRun("ok", start)
	r.logger.Info("reconciliation pass complete",
		zap.String("org_id", orgID),
		zap.Int("refcodes", result.RefcodesSeen),
		zap.Int("written", result.MappingsWritten),
		zap.Int("skipped_deterministic", result.SkippedDeterminism),
		zap.Int("skipped_unchanged", result.SkippedUnchanged),
		zap.Int("unmatched", result.Unmatched),
		zap.Int("tagged", result.TransactionsTagged),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// resolve picks between creative-level and campaign-level resolution.
// Deterministic matches always win over heuristic ones; among heuristics the
// higher confidence wins, and a creative match breaks ties because it pins
// down both ids.
func (r *Reconciler) resolve(refcode string, campaigns []*models.Campaign, creatives []*models.Creative) *Match {
	creativeMatch := MatchRefcodeToCreative(refcode, creatives)
	if creativeMatch != nil && creativeMatch.Deterministic() {
		return creativeMatch
	}
	campaignMatch := MatchRefcodeToCampaign(refcode, campaigns)
	if campaignMatch != nil && campaignMatch.Deterministic() {
		return campaignMatch
	}
	if creativeMatch == nil {
		return campaignMatch
	}
	if campaignMatch == nil || creativeMatch.Confidence >= campaignMatch.Confidence {
		return creativeMatch
	}
	return campaignMatch
}

func (r *Reconciler) buildMapping(orgID, refcode string, match *Match, campaignByID map[string]*models.Campaign) *models.AttributionMapping {
	now := time.Now().UTC()
	m := &models.AttributionMapping{
		ID:              uuid.New().String(),
		OrganizationID:  orgID,
		Refcode:         refcode,
		MatchType:       match.MatchType,
		Confidence:      match.Confidence,
		AttributionType: match.AttributionType(),
		CampaignID:      match.CampaignID,
		CreativeID:      match.CreativeID,
		DestinationURL:  match.DestinationURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c, ok := campaignByID[match.CampaignID]; ok {
		m.Platform = c.Platform
	}
	return m
}

func (r *Reconciler) recordRun(status string, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordReconcileRun(status, time.Since(start))
	}
}
