package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dErrors "surety/pkg/domain-errors"
	platformstrings "surety/pkg/platform/strings"
)

// Status is the position of a policy in the issuance saga.
type Status string

const (
	StatusDraft                   Status = "draft"
	StatusPendingCreditAssessment Status = "pending_credit_assessment"
	StatusPendingPricing          Status = "pending_pricing"
	StatusPendingPayment          Status = "pending_payment"
	StatusActive                  Status = "active"
	StatusCancelled               Status = "cancelled"
	StatusExpired                 Status = "expired"
	StatusSuspended               Status = "suspended"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingCreditAssessment, StatusPendingPricing, StatusPendingPayment,
		StatusActive, StatusCancelled, StatusExpired, StatusSuspended:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

type Type string

const (
	TypeFianca        Type = "fianca"
	TypeCapitalizacao Type = "capitalizacao"
)

func (t Type) IsValid() bool {
	return t == TypeFianca || t == TypeCapitalizacao
}

// NumberPrefix is the three-letter prefix of policy numbers of this type.
func (t Type) NumberPrefix() string {
	if t == TypeFianca {
		return "FIA"
	}
	return "CAP"
}

type CoverageDetails struct {
	Description string   `json:"description"`
	Terms       []string `json:"terms"`
	Exclusions  []string `json:"exclusions"`
	Conditions  []string `json:"conditions"`
}

// Normalize trims the description and drops blank and repeated list entries.
func (c *CoverageDetails) Normalize() {
	c.Description = strings.TrimSpace(c.Description)
	c.Terms = platformstrings.TrimDedupe(c.Terms)
	c.Exclusions = platformstrings.TrimDedupe(c.Exclusions)
	c.Conditions = platformstrings.TrimDedupe(c.Conditions)
}

// Policy is the aggregate root of the issuance saga. Status changes only
// through the Can*/Apply* pairs below; Version increases on every write.
type Policy struct {
	ID                   uuid.UUID       `json:"id"`
	PolicyNumber         string          `json:"policyNumber"`
	Type                 Type            `json:"type"`
	Status               Status          `json:"status"`
	PaymentStatus        PaymentStatus   `json:"paymentStatus"`
	CustomerID           string          `json:"customerId"`
	AgentID              string          `json:"agentId,omitempty"`
	PremiumAmount        decimal.Decimal `json:"premiumAmount"`
	CoverageAmount       decimal.Decimal `json:"coverageAmount"`
	Taxes                decimal.Decimal `json:"taxes"`
	Fees                 decimal.Decimal `json:"fees"`
	Discounts            decimal.Decimal `json:"discounts"`
	Adjustments          decimal.Decimal `json:"adjustments"`
	TotalPremium         decimal.Decimal `json:"totalPremium"`
	StartDate            time.Time       `json:"startDate"`
	EndDate              time.Time       `json:"endDate"`
	EffectiveDate        *time.Time      `json:"effectiveDate,omitempty"`
	CancellationDate     *time.Time      `json:"cancellationDate,omitempty"`
	CancellationReason   *string         `json:"cancellationReason,omitempty"`
	PaymentDueDate       *time.Time      `json:"paymentDueDate,omitempty"`
	PaymentDate          *time.Time      `json:"paymentDate,omitempty"`
	PaymentTransactionID *string         `json:"paymentTransactionId,omitempty"`
	CoverageDetails      CoverageDetails `json:"coverageDetails"`
	CreditAssessment     map[string]any  `json:"creditAssessment,omitempty"`
	PricingDetails       map[string]any  `json:"pricingDetails,omitempty"`
	Metadata             map[string]any  `json:"metadata,omitempty"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// PaymentDueWindow is how long a priced policy waits for payment.
const PaymentDueWindow = 7 * 24 * time.Hour

func conflict(msg string) error {
	return dErrors.New(dErrors.CodeConflict, msg)
}

func (p *Policy) CanInitiateCreditAssessment() error {
	if p.Status != StatusDraft {
		return conflict("Only draft policies can initiate credit assessment")
	}
	return nil
}

func (p *Policy) ApplyCreditAssessmentRequested(now time.Time) {
	p.Status = StatusPendingCreditAssessment
	p.UpdatedAt = now
}

func (p *Policy) CanCompleteCreditAssessment() error {
	if p.Status != StatusPendingCreditAssessment {
		return conflict("Policy is not in credit assessment status")
	}
	return nil
}

func (p *Policy) ApplyCreditAssessment(result map[string]any, now time.Time) {
	p.CreditAssessment = cloneMap(result)
	p.Status = StatusPendingPricing
	p.UpdatedAt = now
}

func (p *Policy) CanCompletePricing() error {
	if p.Status != StatusPendingPricing {
		return conflict("Policy is not in pricing status")
	}
	return nil
}

func (p *Policy) ApplyPricing(result PricingResult, now time.Time) {
	p.PricingDetails = result.Details()
	p.PremiumAmount = result.TotalPremium
	p.TotalPremium = result.TotalPremium
	due := now.Add(PaymentDueWindow)
	p.PaymentDueDate = &due
	p.Status = StatusPendingPayment
	p.UpdatedAt = now
}

// CanProcessPayment accepts PENDING_PAYMENT and, as a fast path, DRAFT.
func (p *Policy) CanProcessPayment() error {
	if p.Status != StatusPendingPayment && p.Status != StatusDraft {
		return conflict("Policy is not in payment pending status or draft status")
	}
	return nil
}

func (p *Policy) ApplyPayment(transactionID string, now time.Time) {
	p.PaymentStatus = PaymentPaid
	p.PaymentDate = &now
	p.EffectiveDate = &now
	p.PaymentTransactionID = &transactionID
	p.Status = StatusActive
	p.UpdatedAt = now
}

func (p *Policy) CanCancel() error {
	if p.Status == StatusCancelled {
		return conflict("Policy is already cancelled")
	}
	return nil
}

func (p *Policy) ApplyCancellation(reason string, now time.Time) {
	p.Status = StatusCancelled
	p.CancellationDate = &now
	p.CancellationReason = &reason
	p.UpdatedAt = now
}

// CanUpdate guards a field patch. Status moves only by cancellation; an
// active policy accepts nothing else.
func (p *Policy) CanUpdate(req *UpdateRequest) error {
	cancelling := req.Status != nil && *req.Status == StatusCancelled
	if p.Status == StatusActive && !cancelling {
		return conflict("Active policies can only be cancelled")
	}
	if req.Status != nil && *req.Status != p.Status {
		if p.Status.IsTerminal() && !cancelling {
			return conflict(fmt.Sprintf("Policy is %s and its status cannot change", p.Status))
		}
		if !cancelling {
			return conflict("Policy status can only be changed by cancellation")
		}
	}
	return nil
}

// ApplyUpdate applies the non-status fields of req. Until the policy is
// priced the total premium follows the premium amount.
func (p *Policy) ApplyUpdate(req *UpdateRequest, now time.Time) {
	if req.CustomerID != nil {
		p.CustomerID = *req.CustomerID
	}
	if req.PremiumAmount != nil {
		p.PremiumAmount = *req.PremiumAmount
		if p.PricingDetails == nil {
			p.TotalPremium = *req.PremiumAmount
		}
	}
	if req.CoverageAmount != nil {
		p.CoverageAmount = *req.CoverageAmount
	}
	if req.StartDate != nil {
		p.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		p.EndDate = *req.EndDate
	}
	if req.CoverageDetails != nil {
		p.CoverageDetails = *req.CoverageDetails
	}
	if req.Metadata != nil {
		p.Metadata = cloneMap(req.Metadata)
	}
	p.UpdatedAt = now
}

func (p *Policy) CanRemove() error {
	if p.Status == StatusActive {
		return conflict("Cannot delete active policy")
	}
	return nil
}

// Clone returns a copy that shares no maps, slices or pointers with p.
func (p *Policy) Clone() *Policy {
	c := *p
	c.EffectiveDate = cloneTime(p.EffectiveDate)
	c.CancellationDate = cloneTime(p.CancellationDate)
	c.PaymentDueDate = cloneTime(p.PaymentDueDate)
	c.PaymentDate = cloneTime(p.PaymentDate)
	c.CancellationReason = cloneString(p.CancellationReason)
	c.PaymentTransactionID = cloneString(p.PaymentTransactionID)
	c.CoverageDetails = CoverageDetails{
		Description: p.CoverageDetails.Description,
		Terms:       append([]string(nil), p.CoverageDetails.Terms...),
		Exclusions:  append([]string(nil), p.CoverageDetails.Exclusions...),
		Conditions:  append([]string(nil), p.CoverageDetails.Conditions...),
	}
	c.CreditAssessment = cloneMap(p.CreditAssessment)
	c.PricingDetails = cloneMap(p.PricingDetails)
	c.Metadata = cloneMap(p.Metadata)
	return &c
}

// TransactionID returns the recorded payment transaction id, or "".
func (p *Policy) TransactionID() string {
	if p.PaymentTransactionID == nil {
		return ""
	}
	return *p.PaymentTransactionID
}

// FormatNumber builds a policy number: type prefix, YYYYMM, six-digit sequence.
func FormatNumber(t Type, at time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%06d", t.NumberPrefix(), at.Format("200601"), seq)
}

// NumberSeries is the per-type, per-month key that sequences share.
func NumberSeries(t Type, at time.Time) string {
	return t.NumberPrefix() + at.Format("200601")
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

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
