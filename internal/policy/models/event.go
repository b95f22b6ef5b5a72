package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPolicyCreated             EventType = "policy_created"
	EventPolicyUpdated             EventType = "policy_updated"
	EventCreditAssessmentRequested EventType = "credit_assessment_requested"
	EventCreditAssessmentCompleted EventType = "credit_assessment_completed"
	EventPricingRequested          EventType = "pricing_requested"
	EventPricingCompleted          EventType = "pricing_completed"
	EventPaymentProcessed          EventType = "payment_processed"
	EventPolicyActivated           EventType = "policy_activated"
	EventPolicyCancelled           EventType = "policy_cancelled"
	EventPolicySuspended           EventType = "policy_suspended"
	EventPolicyExpired             EventType = "policy_expired"
)

type EventStatus string

const (
	EventPending    EventStatus = "pending"
	EventProcessing EventStatus = "processing"
	EventCompleted  EventStatus = "completed"
	EventFailed     EventStatus = "failed"
)

// AuditEvent is a write-once record of one transition.
type AuditEvent struct {
	ID          uuid.UUID      `json:"id"`
	PolicyID    uuid.UUID      `json:"policyId"`
	EventType   EventType      `json:"eventType"`
	Status      EventStatus    `json:"status"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// NewAuditEvent records a completed transition.
func NewAuditEvent(policyID uuid.UUID, eventType EventType, description string, metadata map[string]any, at time.Time) *AuditEvent {
	return &AuditEvent{
		ID:          uuid.New(),
		PolicyID:    policyID,
		EventType:   eventType,
		Status:      EventCompleted,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   at,
	}
}
