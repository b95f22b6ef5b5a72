package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dErrors "surety/pkg/domain-errors"
)

// CreateRequest creates a draft pricing. PricingDetails doubles as the rule
// matching metadata.
type CreateRequest struct {
	PolicyID          uuid.UUID        `json:"policyId"`
	BasePremium       decimal.Decimal  `json:"basePremium"`
	Taxes             decimal.Decimal  `json:"taxes"`
	Fees              decimal.Decimal  `json:"fees"`
	Discounts         decimal.Decimal  `json:"discounts"`
	Adjustments       decimal.Decimal  `json:"adjustments"`
	CoverageAmount    decimal.Decimal  `json:"coverageAmount"`
	PremiumRate       *decimal.Decimal `json:"premiumRate,omitempty"`
	PricingDetails    map[string]any   `json:"pricingDetails,omitempty"`
	CalculationMethod string           `json:"calculationMethod,omitempty"`
	Notes             string           `json:"notes,omitempty"`
}

func (r *CreateRequest) Validate() error {
	if r.PolicyID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "policyId is required")
	}
	if r.BasePremium.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "basePremium must not be negative")
	}
	if r.CoverageAmount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "coverageAmount must not be negative")
	}
	return nil
}

// UpdateRequest is a partial update; nil fields are left untouched.
type UpdateRequest struct {
	Status         *Status          `json:"status,omitempty"`
	BasePremium    *decimal.Decimal `json:"basePremium,omitempty"`
	Taxes          *decimal.Decimal `json:"taxes,omitempty"`
	Fees           *decimal.Decimal `json:"fees,omitempty"`
	Discounts      *decimal.Decimal `json:"discounts,omitempty"`
	Adjustments    *decimal.Decimal `json:"adjustments,omitempty"`
	CoverageAmount *decimal.Decimal `json:"coverageAmount,omitempty"`
	PricingDetails map[string]any   `json:"pricingDetails,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

func (r *UpdateRequest) Validate() error {
	if r.Status != nil && !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown pricing status")
	}
	if r.BasePremium != nil && r.BasePremium.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "basePremium must not be negative")
	}
	return nil
}

// HasPremiumChanges reports whether the update touches a premium component.
func (r *UpdateRequest) HasPremiumChanges() bool {
	return r.BasePremium != nil || r.Taxes != nil || r.Fees != nil ||
		r.Discounts != nil || r.Adjustments != nil
}

// ListFilter selects a page of pricings, newest first.
type ListFilter struct {
	Status   Status
	PolicyID uuid.UUID
	Page     int
	Limit    int
}

// Normalize applies the default page size of 10.
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

// Page is one page of results.
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
