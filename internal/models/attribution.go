package models

import (
	"errors"
	"time"
)

type MatchType string

const (
	MatchURLExact        MatchType = "url_exact"
	MatchURLPartial      MatchType = "url_partial"
	MatchCampaignPattern MatchType = "campaign_pattern"
	MatchFuzzy           MatchType = "fuzzy"
)

// Deterministic reports whether a match of this type is authoritative.
// Only url_exact qualifies; everything else is heuristic and must never
// overwrite a deterministic record.
func (m MatchType) Deterministic() bool {
	return m == MatchURLExact
}

// AttributionMapping links a refcode to the campaign/creative that produced
// it. At most one mapping per (organization_id, refcode) is authoritative at
// a time; superseded rows are overwritten, never deleted.
type AttributionMapping struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	Refcode         string    `json:"refcode"`
	MatchType       MatchType `json:"match_type"`
	Confidence      float64   `json:"confidence"`
	AttributionType string    `json:"attribution_type"`
	CampaignID      string    `json:"campaign_id,omitempty"`
	CreativeID      string    `json:"creative_id,omitempty"`
	Platform        Platform  `json:"platform,omitempty"`
	DestinationURL  string    `json:"destination_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (m *AttributionMapping) Validate() error {
	if m.OrganizationID == "" {
		return errors.New("organization_id is required")
	}
	if m.Refcode == "" {
		return errors.New("refcode is required")
	}
	switch m.MatchType {
	case MatchURLExact, MatchURLPartial, MatchCampaignPattern, MatchFuzzy:
	default:
		return errors.New("unknown match_type")
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return errors.New("confidence must be in [0,1]")
	}
	return nil
}

type Channel string

const (
	ChannelAdImpression Channel = "ad_impression"
	ChannelAdClick      Channel = "ad_click"
	ChannelSMSSend      Channel = "sms_send"
	ChannelSMSClick     Channel = "sms_click"
	ChannelDonation     Channel = "donation"
)

// Touchpoint is one ordered event in a donor's journey. Touchpoints for a
// donor are totally ordered by OccurredAt; the donation event is always last.
type Touchpoint struct {
	OrganizationID string `json:"organization_id"`

	DonorID    string    `json:"donor_id"`
	Channel    Channel   `json:"channel"`
	CampaignID string    `json:"campaign_id,omitempty"`
	CreativeID string    `json:"creative_id,omitempty"`
	Refcode    string    `json:"refcode,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
