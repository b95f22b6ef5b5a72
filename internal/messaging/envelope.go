// Package messaging carries saga steps between services. Every message is a
// versioned Envelope around one payload from a closed set; decoding validates
// both the envelope and the payload so handlers only ever see well-formed
// messages.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	dErrors "surety/pkg/domain-errors"
)

// CurrentVersion is the envelope schema version written by this service.
const CurrentVersion = 1

// Type discriminates envelope payloads.
type Type string

const (
	TypeCreditAssessmentRequested Type = "credit_assessment.requested"
	TypeCreditAssessmentCompleted Type = "credit_assessment.completed"
	TypePricingRequested          Type = "pricing.requested"
	TypePricingCompleted          Type = "pricing.completed"
	TypeBillingNotification       Type = "billing.notification"
	TypeAccountingNotification    Type = "accounting.notification"
	TypeOrderPaid                 Type = "order.paid"
)

// Payload is implemented only by the message bodies in this package.
type Payload interface {
	MessageType() Type
	Validate() error
	isPayload()
}

// Envelope wraps a payload with routing and tracing metadata.
type Envelope struct {
	ID            string
	Type          Type
	Version       int
	OccurredAt    time.Time
	CorrelationID string
	Payload       Payload
}

// NewEnvelope stamps a payload with a fresh id and the current version.
func NewEnvelope(p Payload, occurredAt time.Time, correlationID string) Envelope {
	return Envelope{
		ID:            uuid.NewString(),
		Type:          p.MessageType(),
		Version:       CurrentVersion,
		OccurredAt:    occurredAt.UTC(),
		CorrelationID: correlationID,
		Payload:       p,
	}
}

type wireEnvelope struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurredAt"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Encode validates and serializes an envelope.
func Encode(env Envelope) ([]byte, error) {
	if env.Payload == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "envelope payload is required")
	}
	if env.Type != env.Payload.MessageType() {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("envelope type %q does not match payload type %q", env.Type, env.Payload.MessageType()))
	}
	if err := env.Payload.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(wireEnvelope{
		ID:            env.ID,
		Type:          env.Type,
		Version:       env.Version,
		OccurredAt:    env.OccurredAt,
		CorrelationID: env.CorrelationID,
		Payload:       body,
	})
}

// Decode parses and validates an envelope. Unknown types, unsupported
// versions and invalid payloads are validation errors.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeValidation, "malformed envelope")
	}
	if w.ID == "" {
		return Envelope{}, dErrors.New(dErrors.CodeValidation, "envelope id is required")
	}
	if w.Version != CurrentVersion {
		return Envelope{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("unsupported envelope version %d for %q", w.Version, w.Type))
	}

	p, err := newPayload(w.Type)
	if err != nil {
		return Envelope{}, err
	}
	if len(w.Payload) == 0 {
		return Envelope{}, dErrors.New(dErrors.CodeValidation, "envelope payload is required")
	}
	if err := json.Unmarshal(w.Payload, p); err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("malformed %s payload", w.Type))
	}
	if err := p.Validate(); err != nil {
		return Envelope{}, err
	}

	return Envelope{
		ID:            w.ID,
		Type:          w.Type,
		Version:       w.Version,
		OccurredAt:    w.OccurredAt,
		CorrelationID: w.CorrelationID,
		Payload:       p,
	}, nil
}

func newPayload(t Type) (Payload, error) {
	switch t {
	case TypeCreditAssessmentRequested:
		return &CreditAssessmentRequested{}, nil
	case TypeCreditAssessmentCompleted:
		return &CreditAssessmentCompleted{}, nil
	case TypePricingRequested:
		return &PricingRequested{}, nil
	case TypePricingCompleted:
		return &PricingCompleted{}, nil
	case TypeBillingNotification:
		return &BillingNotification{}, nil
	case TypeAccountingNotification:
		return &AccountingNotification{}, nil
	case TypeOrderPaid:
		return &OrderPaid{}, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown message type %q", t))
	}
}
