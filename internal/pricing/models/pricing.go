package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusActive          Status = "active"
	StatusInactive        Status = "inactive"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusActive, StatusInactive:
		return true
	}
	return false
}

// Pricing is the premium breakdown computed for a policy.
//
// Invariants:
//   - TotalPremium is never negative
//   - At most one pricing per policy is active
type Pricing struct {
	ID                uuid.UUID        `json:"id"`
	PolicyID          uuid.UUID        `json:"policyId"`
	Status            Status           `json:"status"`
	BasePremium       decimal.Decimal  `json:"basePremium"`
	Taxes             decimal.Decimal  `json:"taxes"`
	Fees              decimal.Decimal  `json:"fees"`
	Discounts         decimal.Decimal  `json:"discounts"`
	Adjustments       decimal.Decimal  `json:"adjustments"`
	TotalPremium      decimal.Decimal  `json:"totalPremium"`
	CoverageAmount    decimal.Decimal  `json:"coverageAmount"`
	PremiumRate       *decimal.Decimal `json:"premiumRate,omitempty"`
	PricingDetails    map[string]any   `json:"pricingDetails,omitempty"`
	CalculationMethod string           `json:"calculationMethod,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	ApprovedBy        string           `json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time       `json:"approvedAt,omitempty"`
	RejectionReason   string           `json:"rejectionReason,omitempty"`
	CreatedBy         string           `json:"createdBy,omitempty"`
	UpdatedBy         string           `json:"updatedBy,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// NetPremium is base + taxes + fees - discounts + adjustments on the stored
// components.
func (p *Pricing) NetPremium() decimal.Decimal {
	return p.BasePremium.Add(p.Taxes).Add(p.Fees).Sub(p.Discounts).Add(p.Adjustments)
}

// CalculatedRate is the total premium as a percentage of coverage.
func (p *Pricing) CalculatedRate() decimal.Decimal {
	if !p.CoverageAmount.IsPositive() {
		return decimal.Zero
	}
	return p.TotalPremium.Div(p.CoverageAmount).Mul(decimal.NewFromInt(100))
}

// Clone returns a copy whose maps and pointers are not shared.
func (p *Pricing) Clone() *Pricing {
	c := *p
	c.PricingDetails = cloneMap(p.PricingDetails)
	if p.PremiumRate != nil {
		r := *p.PremiumRate
		c.PremiumRate = &r
	}
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		c.ApprovedAt = &t
	}
	return &c
}

func (p *Pricing) CanApprove() bool    { return p.Status == StatusDraft }
func (p *Pricing) CanReject() bool     { return p.Status == StatusDraft }
func (p *Pricing) CanDeactivate() bool { return p.Status == StatusActive }

// AppliedRule records one rule's contribution to a calculation.
type AppliedRule struct {
	RuleID          uuid.UUID       `json:"ruleId"`
	RuleName        string          `json:"ruleName"`
	RuleType        RuleType        `json:"ruleType"`
	AdjustmentType  AdjustmentType  `json:"adjustmentType"`
	AdjustmentValue decimal.Decimal `json:"adjustmentValue"`
	Result          decimal.Decimal `json:"result"`
}

// Breakdown is the calculation summary merged into PricingDetails.
type Breakdown struct {
	AppliedRules         []AppliedRule
	CalculationTimestamp time.Time
	BasePremium          decimal.Decimal
	TotalDiscount        decimal.Decimal
	TotalSurcharge       decimal.Decimal
	TotalAdjustment      decimal.Decimal
	FinalPremium         decimal.Decimal
}

// Apply merges the breakdown keys into details, keeping unrelated keys.
func (b Breakdown) Apply(details map[string]any) map[string]any {
	out := cloneMap(details)
	if out == nil {
		out = make(map[string]any)
	}
	out["appliedRules"] = b.AppliedRules
	out["calculationTimestamp"] = b.CalculationTimestamp
	out["basePremium"] = b.BasePremium
	out["totalDiscount"] = b.TotalDiscount
	out["totalSurcharge"] = b.TotalSurcharge
	out["totalAdjustment"] = b.TotalAdjustment
	out["finalPremium"] = b.FinalPremium
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
