package models

import (
	"errors"
	"time"
)

type Platform string

const (
	PlatformMeta Platform = "meta"
	PlatformSMS  Platform = "sms"
)

// SpendRecord is one day/campaign/creative advertising cost entry. SMS spend
// has no creative-level mapping, so CreativeID stays empty for that platform.
// Records are immutable once ingested.
type SpendRecord struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Platform       Platform  `json:"platform"`
	CampaignID     string    `json:"campaign_id,omitempty"`
	CreativeID     string    `json:"creative_id,omitempty"`
	Date           time.Time `json:"date"`
	Spend          float64   `json:"spend"`
	Conversions    int64     `json:"conversions"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

func (s *SpendRecord) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Platform != PlatformMeta && s.Platform != PlatformSMS {
		return errors.New("platform must be meta or sms")
	}
	if s.Date.IsZero() {
		return errors.New("date is required")
	}
	if s.Spend < 0 {
		return errors.New("spend must be >= 0")
	}
	return nil
}
