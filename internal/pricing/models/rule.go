package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dErrors "surety/pkg/domain-errors"
)

type RuleType string

const (
	RuleTypeAge             RuleType = "age"
	RuleTypeLocation        RuleType = "location"
	RuleTypeCoverageAmount  RuleType = "coverage_amount"
	RuleTypeRiskLevel       RuleType = "risk_level"
	RuleTypeCustomerSegment RuleType = "customer_segment"
	RuleTypePolicyType      RuleType = "policy_type"
)

func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeAge, RuleTypeLocation, RuleTypeCoverageAmount,
		RuleTypeRiskLevel, RuleTypeCustomerSegment, RuleTypePolicyType:
		return true
	}
	return false
}

// Operator is stored with each rule. Applicability only ever checks
// equality of condition values; the operator is carried for the admin path.
type Operator string

const (
	OperatorEquals       Operator = "equals"
	OperatorGreaterThan  Operator = "greater_than"
	OperatorLessThan     Operator = "less_than"
	OperatorGreaterEqual Operator = "greater_equal"
	OperatorLessEqual    Operator = "less_equal"
	OperatorBetween      Operator = "between"
	OperatorIn           Operator = "in"
	OperatorNotIn        Operator = "not_in"
)

func (o Operator) IsValid() bool {
	switch o {
	case OperatorEquals, OperatorGreaterThan, OperatorLessThan, OperatorGreaterEqual,
		OperatorLessEqual, OperatorBetween, OperatorIn, OperatorNotIn:
		return true
	}
	return false
}

// AdjustmentType is the closed set of premium components a rule can adjust.
type AdjustmentType string

const (
	AdjustmentBasePremium AdjustmentType = "base_premium"
	AdjustmentTax         AdjustmentType = "tax"
	AdjustmentFee         AdjustmentType = "fee"
	AdjustmentDiscount    AdjustmentType = "discount"
	AdjustmentAdjustment  AdjustmentType = "adjustment"
)

// ParseAdjustmentType rejects values outside the closed set.
func ParseAdjustmentType(s string) (AdjustmentType, error) {
	switch t := AdjustmentType(s); t {
	case AdjustmentBasePremium, AdjustmentTax, AdjustmentFee, AdjustmentDiscount, AdjustmentAdjustment:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown adjustment type %q", s))
}

func (a *AdjustmentType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := ParseAdjustmentType(s)
	if err != nil {
		return err
	}
	*a = t
	return nil
}

// PricingRule adjusts a premium when its condition values match the
// calculation metadata.
type PricingRule struct {
	ID                   uuid.UUID        `json:"id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	RuleType             RuleType         `json:"ruleType"`
	Operator             Operator         `json:"operator"`
	ConditionValue       map[string]any   `json:"conditionValue"`
	AdjustmentType       AdjustmentType   `json:"adjustmentType"`
	AdjustmentValue      decimal.Decimal  `json:"adjustmentValue"`
	AdjustmentPercentage *decimal.Decimal `json:"adjustmentPercentage,omitempty"`
	Priority             int              `json:"priority"`
	IsActive             bool             `json:"isActive"`
	EffectiveDate        time.Time        `json:"effectiveDate"`
	ExpirationDate       *time.Time       `json:"expirationDate,omitempty"`
	Metadata             map[string]any   `json:"metadata,omitempty"`
	CreatedBy            string           `json:"createdBy,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// Validate checks the fields the engine depends on.
func (r *PricingRule) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "rule name is required")
	}
	if !r.RuleType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown rule type %q", r.RuleType))
	}
	if !r.Operator.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown operator %q", r.Operator))
	}
	if _, err := ParseAdjustmentType(string(r.AdjustmentType)); err != nil {
		return err
	}
	if r.ExpirationDate != nil && r.ExpirationDate.Before(r.EffectiveDate) {
		return dErrors.New(dErrors.CodeValidation, "expiration date must not precede effective date")
	}
	return nil
}

// IsCurrentlyValid reports whether now falls inside the rule's date window,
// both ends inclusive.
func (r *PricingRule) IsCurrentlyValid(now time.Time) bool {
	if now.Before(r.EffectiveDate) {
		return false
	}
	return r.ExpirationDate == nil || !now.After(*r.ExpirationDate)
}

// IsApplicable reports whether the rule is active, valid at now, and every
// condition value equals the metadata value under the same key.
func (r *PricingRule) IsApplicable(now time.Time, metadata map[string]any) bool {
	if !r.IsActive || !r.IsCurrentlyValid(now) {
		return false
	}
	for key, want := range r.ConditionValue {
		got, ok := metadata[key]
		if !ok || !strictEqual(got, want) {
			return false
		}
	}
	return true
}

// strictEqual compares scalars by value. Numbers compare numerically across
// Go numeric types; maps and slices never compare equal.
func strictEqual(a, b any) bool {
	if da, ok := toDecimal(a); ok {
		db, ok := toDecimal(b)
		return ok && da.Equal(db)
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case decimal.Decimal:
		return n, true
	}
	return decimal.Decimal{}, false
}
