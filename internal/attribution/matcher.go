package attribution

import (
	"net/url"
	"strings"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// Confidence tiers are fixed per match type. Fuzzy confidence is capped
// below every other tier by construction.
const (
	confidenceExact    = 1.0
	confidencePattern  = 0.8
	confidencePartial  = 0.7
	confidenceFuzzyCap = 0.5

	fuzzyThreshold = 0.5
)

// Match is the typed result of resolving a refcode against a candidate set.
type Match struct {
	MatchType      models.MatchType `json:"match_type"`
	Confidence     float64          `json:"confidence"`
	CampaignID     string           `json:"campaign_id,omitempty"`
	CreativeID     string           `json:"creative_id,omitempty"`
	DestinationURL string           `json:"destination_url,omitempty"`
}

// Deterministic reports whether the match came from an exact, unambiguous
// signal.
func (m *Match) Deterministic() bool {
	return m.MatchType.Deterministic()
}

// AttributionType is the derived label persisted alongside the match.
func (m *Match) AttributionType() string {
	if m.Deterministic() {
		return "deterministic"
	}
	return "heuristic"
}

// MatchRefcodeToCreative resolves a refcode against creative candidates.
// Rules are evaluated strictly in order, first hit wins: url_exact then
// url_partial. Creatives carry no pattern or display name worth fuzzing, so
// the campaign-level tiers do not apply here. Ties within a tier go to the
// lexically smallest creative id, so the result never depends on slice order.
func MatchRefcodeToCreative(refcode string, creatives []*models.Creative) *Match {
	if refcode == "" {
		return nil
	}
	folded := strings.ToLower(refcode)

	var exact, partial *models.Creative
	for _, cr := range creatives {
		if cr == nil {
			continue
		}
		extracted := strings.ToLower(refcodeFromURL(cr.DestinationURL))
		if extracted == "" {
			continue
		}
		switch {
		case extracted == folded:
			if exact == nil || cr.ID < exact.ID {
				exact = cr
			}
		case strings.Contains(extracted, folded) || strings.Contains(folded, extracted):
			if partial == nil || cr.ID < partial.ID {
				partial = cr
			}
		}
	}

	if exact != nil {
		return &Match{
			MatchType:      models.MatchURLExact,
			Confidence:     confidenceExact,
			CampaignID:     exact.CampaignID,
			CreativeID:     exact.ID,
			DestinationURL: exact.DestinationURL,
		}
	}
	if partial != nil {
		return &Match{
			MatchType:      models.MatchURLPartial,
			Confidence:     confidencePartial,
			CampaignID:     partial.CampaignID,
			CreativeID:     partial.ID,
			DestinationURL: partial.DestinationURL,
		}
	}
	return nil
}

// MatchRefcodeToCampaign resolves a refcode against campaign candidates.
// Rule order: url_exact, url_partial, campaign_pattern, fuzzy. A refcode
// that normalizes to nothing never matches.
func MatchRefcodeToCampaign(refcode string, campaigns []*models.Campaign) *Match {
	if refcode == "" {
		return nil
	}
	folded := strings.ToLower(refcode)
	normalized := normalizeRefcode(refcode)

	var exact, partial, pattern *models.Campaign
	for _, c := range campaigns {
		if c == nil {
			continue
		}
		extracted := strings.ToLower(campaignRefcode(c))
		if extracted != "" {
			switch {
			case extracted == folded:
				if exact == nil || c.ID < exact.ID {
					exact = c
				}
			case strings.Contains(extracted, folded) || strings.Contains(folded, extracted):
				if partial == nil || c.ID < partial.ID {
					partial = c
				}
			}
		}
		if normalized != "" && normalized == normalizeRefcode(c.ID) {
			if pattern == nil || c.ID < pattern.ID {
				pattern = c
			}
		}
	}

	if exact != nil {
		return campaignMatch(exact, models.MatchURLExact, confidenceExact)
	}
	if partial != nil {
		return campaignMatch(partial, models.MatchURLPartial, confidencePartial)
	}
	if pattern != nil {
		return campaignMatch(pattern, models.MatchCampaignPattern, confidencePattern)
	}
	return fuzzyCampaignMatch(refcode, campaigns)
}

func campaignMatch(c *models.Campaign, mt models.MatchType, confidence float64) *Match {
	return &Match{
		MatchType:      mt,
		Confidence:     confidence,
		CampaignID:     c.ID,
		DestinationURL: c.DestinationURL,
	}
}

// fuzzyCampaignMatch scores token overlap between the refcode and each
// campaign name, keeping the best candidate above the threshold. The raw
// similarity gates selection; the reported confidence is halved and capped
// so fuzzy matches always rank below the pattern tier.
func fuzzyCampaignMatch(refcode string, campaigns []*models.Campaign) *Match {
	var best *models.Campaign
	var bestScore float64

	for _, c := range campaigns {
		if c == nil || c.Name == "" {
			continue
		}
		score := tokenSimilarity(refcode, c.Name)
		if score <= fuzzyThreshold {
			continue
		}
		if best == nil || score > bestScore || (score == bestScore && c.ID < best.ID) {
			best = c
			bestScore = score
		}
	}

	if best == nil {
		return nil
	}
	confidence := bestScore * 0.5
	if confidence > confidenceFuzzyCap {
		confidence = confidenceFuzzyCap
	}
	return &Match{
		MatchType:      models.MatchFuzzy,
		Confidence:     confidence,
		CampaignID:     best.ID,
		DestinationURL: best.DestinationURL,
	}
}

// tokenSimilarity sums per-token scores: an exact token match longer than
// two characters counts 1.0, substring containment counts 0.5; the total is
// divided by the larger token count.
func tokenSimilarity(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var score float64
	for _, ta := range tokensA {
		bestToken := 0.0
		for _, tb := range tokensB {
			switch {
			case ta == tb && len(ta) > 2:
				bestToken = 1.0
			case bestToken < 0.5 && (strings.Contains(ta, tb) || strings.Contains(tb, ta)):
				bestToken = 0.5
			}
			if bestToken == 1.0 {
				break
			}
		}
		score += bestToken
	}

	denom := len(tokensA)
	if len(tokensB) > denom {
		denom = len(tokensB)
	}
	return score / float64(denom)
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isAlnum(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// normalizeRefcode lower-cases and strips every non-alphanumeric rune.
func normalizeRefcode(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// refcodeFromURL extracts the refcode embedded in a destination URL. An
// unparseable URL or one without a recognized parameter yields "".
func refcodeFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, param := range []string{"refcode", "ref", "utm_content"} {
		if v := q.Get(param); v != "" {
			return v
		}
	}
	return ""
}

// campaignRefcode is the campaign's own refcode signal: the one embedded in
// its destination URL, falling back to its configured pattern.
func campaignRefcode(c *models.Campaign) string {
	if v := refcodeFromURL(c.DestinationURL); v != "" {
		return v
	}
	return c.RefcodePattern
}
