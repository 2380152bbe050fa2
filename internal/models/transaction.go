package models

import (
	"errors"
	"time"
)

type TransactionType string

const (
	TransactionDonation     TransactionType = "donation"
	TransactionRefund       TransactionType = "refund"
	TransactionCancellation TransactionType = "cancellation"
)

// Transaction represents a single financial event. Refunds and cancellations
// carry their own id and occurred_at; they are never merged into the original
// donation record.
type Transaction struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Type           TransactionType `json:"type"`
	Amount         float64         `json:"amount"`
	Fee            float64         `json:"fee"`
	NetAmount      float64         `json:"net_amount"`
	OccurredAt     time.Time       `json:"occurred_at"`
	DonorID        string          `json:"donor_id"`
	Refcode        string          `json:"refcode,omitempty"`
	SourceCampaign string          `json:"source_campaign,omitempty"`
	IsRecurring    bool            `json:"is_recurring"`

	// Populated by attribution reconciliation; immutable once written.
	CampaignID string `json:"campaign_id,omitempty"`
	CreativeID string `json:"creative_id,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// IsDonation reports whether the transaction counts toward raised metrics.
func (t *Transaction) IsDonation() bool {
	return t.Type == TransactionDonation
}

// IsReversal reports whether the transaction counts toward refund metrics.
func (t *Transaction) IsReversal() bool {
	return t.Type == TransactionRefund || t.Type == TransactionCancellation
}

func (t *Transaction) Validate() error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if t.OrganizationID == "" {
		return errors.New("organization_id is required")
	}
	switch t.Type {
	case TransactionDonation, TransactionRefund, TransactionCancellation:
	default:
		return errors.New("type must be donation, refund or cancellation")
	}
	if t.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	return nil
}
