// Package engine computes premiums from pricing rules. Evaluate is the pure
// core; Engine adds rule loading, logging and metrics around it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"surety/internal/platform/metrics"
	"surety/internal/pricing/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/requestcontext"
)

var (
	tracer  = otel.Tracer("surety/pricing")
	hundred = decimal.NewFromInt(100)
)

// RuleSource supplies active rules ordered by priority, highest first.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]models.PricingRule, error)
}

type Engine struct {
	rules   RuleSource
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(rules RuleSource, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{rules: rules, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalculateFinalPremium applies the active rules matching metadata to p and
// returns the updated copy. A failure to load rules is logged and the
// calculation proceeds with no rules.
func (e *Engine) CalculateFinalPremium(ctx context.Context, p *models.Pricing, metadata map[string]any) (*models.Pricing, error) {
	ctx, span := tracer.Start(ctx, "pricing.CalculateFinalPremium")
	defer span.End()

	rules := e.activeRules(ctx)
	now := requestcontext.Now(ctx)

	out, err := Evaluate(p, rules, metadata, now)
	if err != nil {
		return nil, err
	}
	applied := appliedCount(out)
	span.SetAttributes(
		attribute.Int("pricing.rules_loaded", len(rules)),
		attribute.Int("pricing.rules_applied", applied),
	)
	e.metrics.ObserveCalculation(applied)
	e.logger.DebugContext(ctx, "premium calculated",
		"policy_id", p.PolicyID,
		"base_premium", p.BasePremium.String(),
		"total_premium", out.TotalPremium.String(),
		"rules_applied", applied,
	)
	return out, nil
}

// GetApplicableRules returns the active rules that would apply to metadata
// now, in evaluation order.
func (e *Engine) GetApplicableRules(ctx context.Context, metadata map[string]any) []models.PricingRule {
	return Applicable(e.activeRules(ctx), metadata, requestcontext.Now(ctx))
}

func (e *Engine) activeRules(ctx context.Context) []models.PricingRule {
	rules, err := e.rules.ActiveRules(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to load pricing rules, calculating without rules", "error", err)
		return nil
	}
	for _, r := range rules {
		if r.Operator != "" && r.Operator != models.OperatorEquals {
			e.logger.DebugContext(ctx, "rule operator is not evaluated, matching by equality",
				"rule_id", r.ID,
				"operator", r.Operator,
			)
		}
	}
	return rules
}

// Applicable filters rules to those valid at now whose conditions match
// metadata, preserving order.
func Applicable(rules []models.PricingRule, metadata map[string]any, now time.Time) []models.PricingRule {
	var out []models.PricingRule
	for i := range rules {
		if rules[i].IsCurrentlyValid(now) && rules[i].IsApplicable(now, metadata) {
			out = append(out, rules[i])
		}
	}
	return out
}

// Evaluate is pure domain logic: no I/O, deterministic for the same inputs.
//
// The final premium is computed from the components as they were before this
// round; the round's totals are added to the stored components afterwards.
func Evaluate(p *models.Pricing, rules []models.PricingRule, metadata map[string]any, now time.Time) (*models.Pricing, error) {
	out := p.Clone()

	var (
		totalDiscount   = decimal.Zero
		totalSurcharge  = decimal.Zero
		totalAdjustment = decimal.Zero
		applied         = []models.AppliedRule{}
	)

	for _, rule := range Applicable(rules, metadata, now) {
		amount := adjustmentFor(rule, p.BasePremium)

		switch rule.AdjustmentType {
		case models.AdjustmentDiscount:
			totalDiscount = totalDiscount.Add(amount)
		case models.AdjustmentTax, models.AdjustmentFee:
			totalSurcharge = totalSurcharge.Add(amount)
		case models.AdjustmentAdjustment:
			totalAdjustment = totalAdjustment.Add(amount)
		case models.AdjustmentBasePremium:
			// contributes to no total
		default:
			return nil, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("rule %s has unhandled adjustment type %q", rule.ID, rule.AdjustmentType))
		}

		if !amount.IsZero() {
			applied = append(applied, models.AppliedRule{
				RuleID:          rule.ID,
				RuleName:        rule.Name,
				RuleType:        rule.RuleType,
				AdjustmentType:  rule.AdjustmentType,
				AdjustmentValue: rule.AdjustmentValue,
				Result:          amount,
			})
		}
	}

	final := p.BasePremium.Add(p.Taxes).Add(p.Fees).Sub(p.Discounts).Add(p.Adjustments)
	if final.IsNegative() {
		final = decimal.Zero
	}

	out.Taxes = p.Taxes.Add(totalSurcharge)
	out.Discounts = p.Discounts.Add(totalDiscount)
	out.Adjustments = p.Adjustments.Add(totalAdjustment)
	out.TotalPremium = final
	out.PricingDetails = models.Breakdown{
		AppliedRules:         applied,
		CalculationTimestamp: now,
		BasePremium:          p.BasePremium,
		TotalDiscount:        totalDiscount,
		TotalSurcharge:       totalSurcharge,
		TotalAdjustment:      totalAdjustment,
		FinalPremium:         final,
	}.Apply(p.PricingDetails)

	return out, nil
}

// adjustmentFor returns base*pct/100 when a non-zero percentage is set,
// otherwise the fixed value.
func adjustmentFor(rule models.PricingRule, base decimal.Decimal) decimal.Decimal {
	if rule.AdjustmentPercentage != nil && !rule.AdjustmentPercentage.IsZero() {
		return base.Mul(*rule.AdjustmentPercentage).Div(hundred)
	}
	return rule.AdjustmentValue
}

func appliedCount(p *models.Pricing) int {
	if rules, ok := p.PricingDetails["appliedRules"].([]models.AppliedRule); ok {
		return len(rules)
	}
	return 0
}
