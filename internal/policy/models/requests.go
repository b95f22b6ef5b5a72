package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dErrors "surety/pkg/domain-errors"
)

type CreateRequest struct {
	Type            Type            `json:"type"`
	CustomerID      string          `json:"customerId"`
	CoverageAmount  decimal.Decimal `json:"coverageAmount"`
	PremiumAmount   decimal.Decimal `json:"premiumAmount"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	CoverageDetails CoverageDetails `json:"coverageDetails"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

func (r *CreateRequest) Normalize() {
	r.CustomerID = strings.TrimSpace(r.CustomerID)
	r.CoverageDetails.Normalize()
}

func (r *UpdateRequest) Normalize() {
	if r.CustomerID != nil {
		id := strings.TrimSpace(*r.CustomerID)
		r.CustomerID = &id
	}
	if r.CoverageDetails != nil {
		r.CoverageDetails.Normalize()
	}
}

func (r *CreateRequest) Validate() error {
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be fianca or capitalizacao")
	}
	if _, err := uuid.Parse(r.CustomerID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "customerId must be a UUID")
	}
	if !r.CoverageAmount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "coverageAmount must be positive")
	}
	if r.PremiumAmount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "premiumAmount must not be negative")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "startDate and endDate are required")
	}
	if r.EndDate.Before(r.StartDate) {
		return dErrors.New(dErrors.CodeValidation, "endDate must not precede startDate")
	}
	return nil
}

// UpdateRequest is a partial update; nil fields are left untouched.
type UpdateRequest struct {
	Status             *Status          `json:"status,omitempty"`
	CancellationReason *string          `json:"cancellationReason,omitempty"`
	CustomerID         *string          `json:"customerId,omitempty"`
	CoverageAmount     *decimal.Decimal `json:"coverageAmount,omitempty"`
	PremiumAmount      *decimal.Decimal `json:"premiumAmount,omitempty"`
	StartDate          *time.Time       `json:"startDate,omitempty"`
	EndDate            *time.Time       `json:"endDate,omitempty"`
	CoverageDetails    *CoverageDetails `json:"coverageDetails,omitempty"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
}

func (r *UpdateRequest) Validate() error {
	if r.Status != nil && !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown policy status")
	}
	if r.CoverageAmount != nil && !r.CoverageAmount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "coverageAmount must be positive")
	}
	if r.PremiumAmount != nil && r.PremiumAmount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "premiumAmount must not be negative")
	}
	return nil
}

// ChangedFields names the fields present in the patch, in a stable order.
func (r *UpdateRequest) ChangedFields() []string {
	var fields []string
	add := func(name string, present bool) {
		if present {
			fields = append(fields, name)
		}
	}
	add("status", r.Status != nil)
	add("customerId", r.CustomerID != nil)
	add("coverageAmount", r.CoverageAmount != nil)
	add("premiumAmount", r.PremiumAmount != nil)
	add("startDate", r.StartDate != nil)
	add("endDate", r.EndDate != nil)
	add("coverageDetails", r.CoverageDetails != nil)
	add("metadata", r.Metadata != nil)
	return fields
}

// IsCancellation reports whether the patch asks for cancellation.
func (r *UpdateRequest) IsCancellation() bool {
	return r.Status != nil && *r.Status == StatusCancelled
}

// PaymentRequest carries the payment confirmation. Empty fields take
// defaults when the payment is processed.
type PaymentRequest struct {
	TransactionID string `json:"transactionId,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

const DefaultPaymentMethod = "credit_card"

// DefaultTransactionID is used when the caller supplies none.
func DefaultTransactionID(policyID uuid.UUID, at time.Time) string {
	return "TXN-" + policyID.String() + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

// PricingResult is the approved premium returned by the pricing worker.
type PricingResult struct {
	PricingID      uuid.UUID
	BasePremium    decimal.Decimal
	TotalPremium   decimal.Decimal
	PricingDetails map[string]any
}

// Details is the blob stored on the policy.
func (r PricingResult) Details() map[string]any {
	out := cloneMap(r.PricingDetails)
	if out == nil {
		out = make(map[string]any)
	}
	out["pricingId"] = r.PricingID.String()
	out["basePremium"] = r.BasePremium.String()
	out["totalPremium"] = r.TotalPremium.String()
	return out
}

type ListFilter struct {
	Status     Status
	Type       Type
	CustomerID string
	AgentID    string
	Page       int
	Limit      int
}

func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ListResult is one page of policies.
type ListResult struct {
	Policies []*Policy `json:"policies"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}
