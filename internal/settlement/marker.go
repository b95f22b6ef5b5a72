package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Marker states.
const (
	StateProcessing = "processing"
	StateProcessed  = "processed"
)

// DefaultMarkerTTL bounds how long a transaction id is remembered.
const DefaultMarkerTTL = 24 * time.Hour

// Marker records that a payment transaction was seen. A claimed but not yet
// completed transaction has State processing and no ProcessedAt.
type Marker struct {
	TransactionID string     `json:"transactionId"`
	PolicyNumber  string     `json:"policyNumber,omitempty"`
	State         string     `json:"state"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}

// Claim is the reservation one consumer holds on a transaction id. The token
// tells this holder apart from a later one that claimed the id after the
// reservation expired.
type Claim struct {
	TransactionID string
	Token         string
}

func newClaim(transactionID string) Claim {
	return Claim{TransactionID: transactionID, Token: uuid.NewString()}
}

// MarkerStore is the idempotency ledger for payment confirmations.
type MarkerStore interface {
	// Claim atomically reserves transactionID. It returns false when the id
	// was already claimed or completed.
	Claim(ctx context.Context, transactionID string, ttl time.Duration) (Claim, bool, error)
	// Complete overwrites the claim with the processed marker. It returns
	// sentinel.ErrConflict when c no longer holds the id.
	Complete(ctx context.Context, c Claim, m Marker, ttl time.Duration) error
	// Release drops the claim so a redelivery can retry. A claim that is no
	// longer held is left alone.
	Release(ctx context.Context, c Claim) error
	// Get returns the marker or sentinel.ErrNotFound.
	Get(ctx context.Context, transactionID string) (*Marker, error)
}

func markerKey(transactionID string) string {
	return "payment_processed:" + transactionID
}
