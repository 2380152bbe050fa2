package attribution

import (
	"sync"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// Decision is the guard's verdict on a candidate mapping write.
type Decision int

const (
	// DecisionWrite means the candidate should be persisted.
	DecisionWrite Decision = iota
	// DecisionSkipDeterministic means a heuristic candidate tried to
	// overwrite an authoritative url_exact record. Not an error; callers may
	// log it as an informational skip.
	DecisionSkipDeterministic
	// DecisionSkipUnchanged means the candidate is identical to the stored
	// record, so re-running the pass stays mutation-free.
	DecisionSkipUnchanged
)

func (d Decision) String() string {
	switch d {
	case DecisionWrite:
		return "write"
	case DecisionSkipDeterministic:
		return "skip_deterministic"
	case DecisionSkipUnchanged:
		return "skip_unchanged"
	default:
		return "unknown"
	}
}

// Guard enforces the deterministic-over-heuristic write policy for
// attribution mappings. It is an explicit lookup table keyed by
// (organization_id, refcode), populated from the mapping store at the start
// of each reconciliation pass rather than held as ambient state.
//
// The policy is monotonic: a deterministic record can only be replaced by
// another deterministic record, so overlapping passes converge to the same
// end state regardless of interleaving.
type Guard struct {
	mu       sync.RWMutex
	existing map[guardKey]*models.AttributionMapping
}

type guardKey struct {
	orgID   string
	refcode string
}

// NewGuard builds a guard view from the currently persisted mappings.
func NewGuard(existing []*models.AttributionMapping) *Guard {
	g := &Guard{existing: make(map[guardKey]*models.AttributionMapping, len(existing))}
	for _, m := range existing {
		if m == nil {
			continue
		}
		g.existing[guardKey{m.OrganizationID, m.Refcode}] = m
	}
	return g
}

// Evaluate decides whether the candidate mapping may be written. A new
// deterministic match always writes, including over a prior deterministic
// record; a heuristic match never downgrades a deterministic one.
func (g *Guard) Evaluate(candidate *models.AttributionMapping) Decision {
	if candidate == nil {
		return DecisionSkipUnchanged
	}

	g.mu.RLock()
	prior := g.existing[guardKey{candidate.OrganizationID, candidate.Refcode}]
	g.mu.RUnlock()

	if prior == nil {
		return DecisionWrite
	}
	if prior.MatchType.Deterministic() && !candidate.MatchType.Deterministic() {
		return DecisionSkipDeterministic
	}
	if sameResolution(prior, candidate) {
		return DecisionSkipUnchanged
	}
	return DecisionWrite
}

// Commit records a successful write so later candidates in the same pass see
// the updated state.
func (g *Guard) Commit(m *models.AttributionMapping) {
	if m == nil {
		return
	}
	g.mu.Lock()
	g.existing[guardKey{m.OrganizationID, m.Refcode}] = m
	g.mu.Unlock()
}

// Existing returns the authoritative mapping for a key, or nil.
func (g *Guard) Existing(orgID, refcode string) *models.AttributionMapping {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.existing[guardKey{orgID, refcode}]
}

func sameResolution(a, b *models.AttributionMapping) bool {
	return a.MatchType == b.MatchType &&
		a.Confidence == b.Confidence &&
		a.CampaignID == b.CampaignID &&
		a.CreativeID == b.CreativeID
}
