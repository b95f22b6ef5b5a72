package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCurrentlyValid(t *testing.T) {
	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := effective.Add(30 * 24 * time.Hour)
	r := PricingRule{EffectiveDate: effective, ExpirationDate: &expires}

	assert.False(t, r.IsCurrentlyValid(effective.Add(-time.Second)))
	assert.True(t, r.IsCurrentlyValid(effective), "window start is inclusive")
	assert.True(t, r.IsCurrentlyValid(expires), "window end is inclusive")
	assert.False(t, r.IsCurrentlyValid(expires.Add(time.Second)))

	r.ExpirationDate = nil
	assert.True(t, r.IsCurrentlyValid(expires.Add(365*24*time.Hour)))
}

func TestIsApplicableEquality(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	r := PricingRule{
		IsActive:       true,
		EffectiveDate:  now.Add(-time.Hour),
		ConditionValue: map[string]any{"riskLevel": "low", "age": 30},
	}

	assert.True(t, r.IsApplicable(now, map[string]any{"riskLevel": "low", "age": float64(30), "extra": true}),
		"numbers compare across numeric types")
	assert.False(t, r.IsApplicable(now, map[string]any{"riskLevel": "low", "age": "30"}),
		"a string never equals a number")
	assert.False(t, r.IsApplicable(now, map[string]any{"riskLevel": "low"}), "missing key")
	assert.False(t, r.IsApplicable(now, map[string]any{"riskLevel": "LOW", "age": 30}))

	r.ConditionValue = map[string]any{"tags": []any{"a"}}
	assert.False(t, r.IsApplicable(now, map[string]any{"tags": []any{"a"}}), "composite values never match")

	r.ConditionValue = nil
	assert.True(t, r.IsApplicable(now, nil), "no conditions always applies")

	r.IsActive = false
	assert.False(t, r.IsApplicable(now, nil))
}

func TestAdjustmentTypeDecoding(t *testing.T) {
	var r PricingRule
	err := json.Unmarshal([]byte(`{"adjustmentType":"surcharge"}`), &r)
	require.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`{"adjustmentType":"discount","adjustmentValue":"12.5"}`), &r))
	assert.Equal(t, AdjustmentDiscount, r.AdjustmentType)
	assert.True(t, decimal.RequireFromString("12.5").Equal(r.AdjustmentValue))
}

func TestRuleValidate(t *testing.T) {
	now := time.Now()
	before := now.Add(-time.Hour)
	r := PricingRule{
		Name:           "r",
		RuleType:       RuleTypeRiskLevel,
		Operator:       OperatorEquals,
		AdjustmentType: AdjustmentTax,
		EffectiveDate:  now,
	}
	require.NoError(t, r.Validate())

	r.ExpirationDate = &before
	assert.Error(t, r.Validate())

	r.ExpirationDate = nil
	r.Operator = "like"
	assert.Error(t, r.Validate())
}

func TestHistoryHasSignificantChange(t *testing.T) {
	before := &Pricing{BasePremium: decimal.NewFromInt(100), TotalPremium: decimal.NewFromInt(100)}
	after := before.Clone()
	after.Status = StatusActive

	h := History{OldValues: Snapshot(before), NewValues: Snapshot(after)}
	assert.False(t, h.HasSignificantChange(), "status alone is not significant")

	after.TotalPremium = decimal.NewFromInt(120)
	h.NewValues = Snapshot(after)
	assert.True(t, h.HasSignificantChange())
}

func TestPricingDerivedFigures(t *testing.T) {
	p := Pricing{
		BasePremium:    decimal.NewFromInt(1000),
		Taxes:          decimal.NewFromInt(50),
		Discounts:      decimal.NewFromInt(100),
		TotalPremium:   decimal.NewFromInt(950),
		CoverageAmount: decimal.NewFromInt(100000),
	}
	assert.True(t, decimal.NewFromInt(950).Equal(p.NetPremium()))
	assert.True(t, decimal.RequireFromString("0.95").Equal(p.CalculatedRate()))
}
