package models

import (
	"errors"
	"time"
)

type CampaignStatus string

const (
	CampaignStatusDraft    CampaignStatus = "draft"
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusPaused   CampaignStatus = "paused"
	CampaignStatusArchived CampaignStatus = "archived"
)

// Campaign is a marketing campaign (Meta ad campaign or SMS blast program)
// that donation refcodes resolve against.
type Campaign struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Name           string         `json:"name"`
	Platform       Platform       `json:"platform"`
	RefcodePattern string         `json:"refcode_pattern,omitempty"`
	DestinationURL string         `json:"destination_url,omitempty"`
	Status         CampaignStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (c *Campaign) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.OrganizationID == "" {
		return errors.New("organization_id is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Creative is a single ad variant under a campaign. Its destination URL
// usually embeds the refcode the matcher extracts.
type Creative struct {
	ID             string    `json:"id"`
	CampaignID     string    `json:"campaign_id"`
	Name           string    `json:"name,omitempty"`
	DestinationURL string    `json:"destination_url,omitempty"`
	Status         string    `json:"status,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

func (cr *Creative) Validate() error {
	if cr.ID == "" {
		return errors.New("id is required")
	}
	if cr.CampaignID == "" {
		return errors.New("campaign_id is required")
	}
	return nil
}
