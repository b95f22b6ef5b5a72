package messaging

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dErrors "surety/pkg/domain-errors"
)

// Queue names shared with the other services of the saga.
const (
	QueueCreditAssessment       = "credit.assessment.queue"
	QueueCreditAssessmentResult = "credit.assessment.result.queue"
	QueuePricing                = "pricing.queue"
	QueuePricingResult          = "pricing.result.queue"
	QueueBilling                = "billing.queue"
	QueueAccounting             = "accounting.queue"
	QueueOrderPaid              = "order_paid"
)

// Queues lists every destination the service publishes to or consumes from.
var Queues = []string{
	QueueCreditAssessment,
	QueueCreditAssessmentResult,
	QueuePricing,
	QueuePricingResult,
	QueueBilling,
	QueueAccounting,
	QueueOrderPaid,
}

type CreditAssessmentRequested struct {
	PolicyID       uuid.UUID       `json:"policyId"`
	PolicyNumber   string          `json:"policyNumber"`
	CustomerID     string          `json:"customerId"`
	CoverageAmount decimal.Decimal `json:"coverageAmount"`
	Type           string          `json:"type"`
	CustomerData   map[string]any  `json:"customerData,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (*CreditAssessmentRequested) MessageType() Type { return TypeCreditAssessmentRequested }
func (*CreditAssessmentRequested) isPayload()        {}

func (p *CreditAssessmentRequested) Validate() error {
	if err := requirePolicy(p.PolicyID, p.PolicyNumber); err != nil {
		return err
	}
	if p.CustomerID == "" {
		return invalid(TypeCreditAssessmentRequested, "customerId is required")
	}
	return nil
}

// CreditAssessmentCompleted is the reply of the external credit capability.
type CreditAssessmentCompleted struct {
	PolicyID     uuid.UUID      `json:"policyId"`
	AssessmentID string         `json:"assessmentId,omitempty"`
	Score        int            `json:"score"`
	RiskLevel    string         `json:"riskLevel"`
	Approved     bool           `json:"approved"`
	Criteria     map[string]any `json:"criteria,omitempty"`
	AssessedAt   time.Time      `json:"assessedAt"`
	Timestamp    time.Time      `json:"timestamp"`
}

func (*CreditAssessmentCompleted) MessageType() Type { return TypeCreditAssessmentCompleted }
func (*CreditAssessmentCompleted) isPayload()        {}

func (p *CreditAssessmentCompleted) Validate() error {
	if p.PolicyID == uuid.Nil {
		return invalid(TypeCreditAssessmentCompleted, "policyId is required")
	}
	if p.RiskLevel == "" {
		return invalid(TypeCreditAssessmentCompleted, "riskLevel is required")
	}
	if p.Score < 0 || p.Score > 1000 {
		return invalid(TypeCreditAssessmentCompleted, "score must be between 0 and 1000")
	}
	return nil
}

// Result returns the assessment as stored on the policy aggregate.
func (p *CreditAssessmentCompleted) Result() map[string]any {
	out := map[string]any{
		"score":      p.Score,
		"riskLevel":  p.RiskLevel,
		"approved":   p.Approved,
		"assessedAt": p.AssessedAt,
	}
	if p.AssessmentID != "" {
		out["assessmentId"] = p.AssessmentID
	}
	if len(p.Criteria) > 0 {
		out["criteria"] = p.Criteria
	}
	return out
}

type PricingRequested struct {
	PolicyID         uuid.UUID       `json:"policyId"`
	PolicyNumber     string          `json:"policyNumber"`
	Type             string          `json:"type"`
	CoverageAmount   decimal.Decimal `json:"coverageAmount"`
	CoverageDetails  map[string]any  `json:"coverageDetails,omitempty"`
	CreditAssessment map[string]any  `json:"creditAssessment,omitempty"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          time.Time       `json:"endDate"`
	Timestamp        time.Time       `json:"timestamp"`
}

func (*PricingRequested) MessageType() Type { return TypePricingRequested }
func (*PricingRequested) isPayload()        {}

func (p *PricingRequested) Validate() error {
	if err := requirePolicy(p.PolicyID, p.PolicyNumber); err != nil {
		return err
	}
	if !p.CoverageAmount.IsPositive() {
		return invalid(TypePricingRequested, "coverageAmount must be positive")
	}
	return nil
}

// PricingCompleted carries an approved premium back to the policy saga.
type PricingCompleted struct {
	PolicyID       uuid.UUID       `json:"policyId"`
	PricingID      uuid.UUID       `json:"pricingId"`
	BasePremium    decimal.Decimal `json:"basePremium"`
	TotalPremium   decimal.Decimal `json:"totalPremium"`
	PricingDetails map[string]any  `json:"pricingDetails,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (*PricingCompleted) MessageType() Type { return TypePricingCompleted }
func (*PricingCompleted) isPayload()        {}

func (p *PricingCompleted) Validate() error {
	if p.PolicyID == uuid.Nil || p.PricingID == uuid.Nil {
		return invalid(TypePricingCompleted, "policyId and pricingId are required")
	}
	if p.TotalPremium.IsNegative() {
		return invalid(TypePricingCompleted, "totalPremium must not be negative")
	}
	return nil
}

type BillingNotification struct {
	PolicyID      uuid.UUID       `json:"policyId"`
	PolicyNumber  string          `json:"policyNumber"`
	CustomerID    string          `json:"customerId"`
	PremiumAmount decimal.Decimal `json:"premiumAmount"`
	PaymentDate   time.Time       `json:"paymentDate"`
	EffectiveDate time.Time       `json:"effectiveDate"`
	EndDate       time.Time       `json:"endDate"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (*BillingNotification) MessageType() Type { return TypeBillingNotification }
func (*BillingNotification) isPayload()        {}

func (p *BillingNotification) Validate() error {
	return requirePolicy(p.PolicyID, p.PolicyNumber)
}

type AccountingNotification struct {
	PolicyID       uuid.UUID       `json:"policyId"`
	PolicyNumber   string          `json:"policyNumber"`
	CustomerID     string          `json:"customerId"`
	PremiumAmount  decimal.Decimal `json:"premiumAmount"`
	CoverageAmount decimal.Decimal `json:"coverageAmount"`
	PaymentDate    time.Time       `json:"paymentDate"`
	EffectiveDate  time.Time       `json:"effectiveDate"`
	Type           string          `json:"type"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (*AccountingNotification) MessageType() Type { return TypeAccountingNotification }
func (*AccountingNotification) isPayload()        {}

func (p *AccountingNotification) Validate() error {
	return requirePolicy(p.PolicyID, p.PolicyNumber)
}

// OrderPaid confirms a payment. The settlement consumer deduplicates on
// TransactionID.
type OrderPaid struct {
	PolicyID       uuid.UUID       `json:"policyId"`
	PolicyNumber   string          `json:"policyNumber"`
	CustomerID     string          `json:"customerId"`
	PremiumAmount  decimal.Decimal `json:"premiumAmount"`
	PaymentDate    time.Time       `json:"paymentDate"`
	PaymentStatus  string          `json:"paymentStatus"`
	TransactionID  string          `json:"transactionId"`
	PaymentMethod  string          `json:"paymentMethod"`
	CoverageAmount decimal.Decimal `json:"coverageAmount"`
	Type           string          `json:"type"`
	EffectiveDate  time.Time       `json:"effectiveDate"`
	EndDate        time.Time       `json:"endDate"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (*OrderPaid) MessageType() Type { return TypeOrderPaid }
func (*OrderPaid) isPayload()        {}

func (p *OrderPaid) Validate() error {
	if err := requirePolicy(p.PolicyID, p.PolicyNumber); err != nil {
		return err
	}
	if p.TransactionID == "" {
		return invalid(TypeOrderPaid, "transactionId is required")
	}
	return nil
}

func requirePolicy(id uuid.UUID, number string) error {
	if id == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "policyId is required")
	}
	if number == "" {
		return dErrors.New(dErrors.CodeValidation, "policyNumber is required")
	}
	return nil
}

func invalid(t Type, msg string) error {
	return dErrors.New(dErrors.CodeValidation, string(t)+": "+msg)
}
