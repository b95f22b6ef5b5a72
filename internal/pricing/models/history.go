package models

import (
	"time"

	"github.com/google/uuid"
)

type HistoryAction string

const (
	HistoryCreated     HistoryAction = "created"
	HistoryUpdated     HistoryAction = "updated"
	HistoryApproved    HistoryAction = "approved"
	HistoryRejected    HistoryAction = "rejected"
	HistoryDeactivated HistoryAction = "deactivated"
	HistoryCalculated  HistoryAction = "calculated"
)

// History is an append-only record of a pricing change.
type History struct {
	ID           uuid.UUID      `json:"id"`
	PricingID    uuid.UUID      `json:"pricingId"`
	Action       HistoryAction  `json:"action"`
	OldValues    map[string]any `json:"oldValues,omitempty"`
	NewValues    map[string]any `json:"newValues,omitempty"`
	ChangedBy    string         `json:"changedBy,omitempty"`
	ChangeReason string         `json:"changeReason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Snapshot captures the fields history compares and stores.
func Snapshot(p *Pricing) map[string]any {
	if p == nil {
		return nil
	}
	return map[string]any{
		"status":       string(p.Status),
		"basePremium":  p.BasePremium.String(),
		"taxes":        p.Taxes.String(),
		"fees":         p.Fees.String(),
		"discounts":    p.Discounts.String(),
		"adjustments":  p.Adjustments.String(),
		"totalPremium": p.TotalPremium.String(),
	}
}

// significantFields are the snapshot keys whose change is worth surfacing.
var significantFields = []string{"basePremium", "totalPremium", "discounts", "adjustments"}

// HasSignificantChange reports whether any premium figure moved.
func (h *History) HasSignificantChange() bool {
	if h.OldValues == nil || h.NewValues == nil {
		return false
	}
	for _, f := range significantFields {
		if h.OldValues[f] != h.NewValues[f] {
			return true
		}
	}
	return false
}
