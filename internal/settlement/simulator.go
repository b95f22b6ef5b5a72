package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"surety/internal/messaging"
	dErrors "surety/pkg/domain-errors"
)

// TransactionSimulator stands in for the bank. It settles a confirmed order
// and returns the bank's confirmation id.
type TransactionSimulator interface {
	Settle(ctx context.Context, order *messaging.OrderPaid) (string, error)
}

// LocalBank confirms every non-zero payment after an optional delay.
type LocalBank struct {
	Delay time.Duration
}

func (b LocalBank) Settle(ctx context.Context, order *messaging.OrderPaid) (string, error) {
	if order.PremiumAmount.IsNegative() {
		return "", dErrors.New(dErrors.CodeValidation, "payment amount must not be negative")
	}
	if b.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "bank settlement cancelled")
		case <-time.After(b.Delay):
		}
	}
	return "BANK-" + uuid.NewString(), nil
}
