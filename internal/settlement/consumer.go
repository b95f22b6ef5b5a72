// Package settlement consumes payment confirmations exactly once per
// transaction id and exposes the resulting markers.
package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"surety/internal/messaging"
	"surety/internal/platform/metrics"
	"surety/internal/policy/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/sentinel"
	"surety/pkg/requestcontext"
)

// PolicyPayments is the part of the policy saga the consumer drives.
type PolicyPayments interface {
	FindOne(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	ProcessPayment(ctx context.Context, id uuid.UUID, req *models.PaymentRequest) (*models.Policy, error)
}

type Consumer struct {
	markers  MarkerStore
	policies PolicyPayments
	bank     TransactionSimulator
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(c *Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

func WithMarkerTTL(ttl time.Duration) Option {
	return func(c *Consumer) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithBank(bank TransactionSimulator) Option {
	return func(c *Consumer) {
		c.bank = bank
	}
}

func NewConsumer(markers MarkerStore, policies PolicyPayments, opts ...Option) *Consumer {
	c := &Consumer{
		markers:  markers,
		policies: policies,
		bank:     LocalBank{},
		ttl:      DefaultMarkerTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one order.paid envelope. Duplicates are acknowledged
// without side effects; a failure releases the claim so a redelivery can
// retry.
func (c *Consumer) Handle(ctx context.Context, env messaging.Envelope) error {
	order, ok := env.Payload.(*messaging.OrderPaid)
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "unexpected payload "+string(env.Type)+" on "+messaging.QueueOrderPaid)
	}

	claim, claimed, err := c.markers.Claim(ctx, order.TransactionID, c.ttl)
	if err != nil {
		c.metrics.IncrementSettlement("failed")
		return dErrors.Wrap(err, dErrors.CodeIntegration, "failed to claim payment transaction")
	}
	if !claimed {
		c.metrics.IncrementSettlement("duplicate")
		c.logger.InfoContext(ctx, "duplicate payment confirmation ignored",
			"transaction_id", order.TransactionID,
			"policy_number", order.PolicyNumber,
		)
		return nil
	}

	outcome, err := c.settle(ctx, order)
	if err != nil {
		if relErr := c.markers.Release(ctx, claim); relErr != nil {
			c.logger.ErrorContext(ctx, "failed to release payment claim",
				"transaction_id", order.TransactionID,
				"error", relErr,
			)
		}
		c.metrics.IncrementSettlement("failed")
		return err
	}

	now := requestcontext.Now(ctx)
	if err := c.markers.Complete(ctx, claim, Marker{
		TransactionID: order.TransactionID,
		PolicyNumber:  order.PolicyNumber,
		ProcessedAt:   &now,
	}, c.ttl); err != nil {
		// The payment is applied; the claim still blocks redeliveries until it expires.
		c.logger.ErrorContext(ctx, "failed to record processed payment",
			"transaction_id", order.TransactionID,
			"error", err,
		)
	}
	c.metrics.IncrementSettlement(outcome)
	return nil
}

func (c *Consumer) settle(ctx context.Context, order *messaging.OrderPaid) (string, error) {
	p, err := c.policies.FindOne(ctx, order.PolicyID)
	if err != nil {
		return "", err
	}
	if p.Status == models.StatusActive && p.TransactionID() == order.TransactionID {
		c.logger.DebugContext(ctx, "payment confirmation echo, policy already active",
			"policy_id", p.ID,
			"transaction_id", order.TransactionID,
		)
		return "echo", nil
	}
	if err := p.CanProcessPayment(); err != nil {
		return "", err
	}

	confirmation, err := c.bank.Settle(ctx, order)
	if err != nil {
		return "", err
	}
	if _, err := c.policies.ProcessPayment(ctx, order.PolicyID, &models.PaymentRequest{
		TransactionID: order.TransactionID,
		PaymentMethod: order.PaymentMethod,
	}); err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "payment settled",
		"policy_id", order.PolicyID,
		"policy_number", order.PolicyNumber,
		"transaction_id", order.TransactionID,
		"bank_confirmation", confirmation,
	)
	return "processed", nil
}

// GetPaymentStatus returns the marker recorded for transactionID.
func (c *Consumer) GetPaymentStatus(ctx context.Context, transactionID string) (*Marker, error) {
	m, err := c.markers.Get(ctx, transactionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "Payment not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment status")
	}
	return m, nil
}
