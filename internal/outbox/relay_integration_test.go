//go:build integration

package outbox_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"surety/internal/messaging"
	"surety/internal/outbox"
	"surety/internal/platform/config"
	txcontext "surety/pkg/platform/tx"
	"surety/pkg/testutil/containers"
)

// =============================================================================
// Outbox Relay Integration Suite
// =============================================================================
// Justification for integration tests: SKIP LOCKED batching and delivery to a
// real broker cannot be observed against the in-memory store and bus.

type RelayIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *outbox.PostgresStore
	writer   *outbox.Writer
	logger   *slog.Logger
	ctx      context.Context
	now      time.Time
}

func TestRelayIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelayIntegrationSuite))
}

func (s *RelayIntegrationSuite) SetupSuite() {
	manager := containers.GetManager()
	s.postgres = manager.GetPostgres(s.T())
	s.redpanda = manager.GetRedpanda(s.T())
	s.store = outbox.NewPostgresStore(s.postgres.DB)
	s.writer = outbox.NewWriter(s.store)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.now = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *RelayIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "outbox"))
}

func (s *RelayIntegrationSuite) kafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:           s.redpanda.Brokers,
		ClientID:          "surety-it",
		ConsumerGroup:     "surety-it-" + uuid.NewString(),
		Partitions:        1,
		ReplicationFactor: 1,
	}
}

func (s *RelayIntegrationSuite) addBilling() messaging.Envelope {
	policyID := uuid.New()
	env := messaging.NewEnvelope(&messaging.BillingNotification{
		PolicyID:      policyID,
		PolicyNumber:  "FIA202507000001",
		CustomerID:    "cust-1",
		PremiumAmount: decimal.NewFromInt(480),
		Timestamp:     s.now,
	}, s.now, policyID.String())
	s.Require().NoError(s.writer.Add(s.ctx, "policy", policyID.String(), messaging.QueueBilling, env))
	return env
}

// TestSkipLocked verifies two concurrent relays never fetch the same entry.
func (s *RelayIntegrationSuite) TestSkipLocked() {
	for i := 0; i < 3; i++ {
		s.addBilling()
	}

	tx1, err := s.postgres.DB.BeginTx(s.ctx, nil)
	s.Require().NoError(err)
	defer func() { _ = tx1.Rollback() }()
	first, err := s.store.FetchPending(txcontext.WithTx(s.ctx, tx1), 2)
	s.Require().NoError(err)
	s.Len(first, 2)

	tx2, err := s.postgres.DB.BeginTx(s.ctx, nil)
	s.Require().NoError(err)
	defer func() { _ = tx2.Rollback() }()
	second, err := s.store.FetchPending(txcontext.WithTx(s.ctx, tx2), 10)
	s.Require().NoError(err)
	s.Require().Len(second, 1, "locked rows are skipped")
	for _, e := range first {
		s.NotEqual(e.ID, second[0].ID)
	}
}

func (s *RelayIntegrationSuite) TestMarkProcessedAndCleanup() {
	s.addBilling()
	entries, err := s.store.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)

	s.Require().NoError(s.store.MarkProcessed(s.ctx, entries[0].ID, s.now))
	pending, err := s.store.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)

	n, err := s.store.DeleteProcessedBefore(s.ctx, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

// TestRelayToKafka runs the relay against Postgres and Redpanda and reads
// the message back through the bus.
func (s *RelayIntegrationSuite) TestRelayToKafka() {
	bus, err := messaging.NewKafkaBus(s.kafkaConfig(), s.logger, nil)
	s.Require().NoError(err)
	defer bus.Close()

	want := s.addBilling()
	relay := outbox.NewRelay(s.store, txcontext.NewPostgresRunner(s.postgres.DB, 10*time.Second), bus, s.logger,
		config.OutboxConfig{BatchSize: 10, PollInterval: time.Second})

	n, err := relay.RelayBatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	got := make(chan messaging.Envelope, 16)
	go func() {
		_ = bus.Consume(ctx, messaging.QueueBilling, func(_ context.Context, env messaging.Envelope) error {
			got <- env
			return nil
		})
	}()

	for {
		select {
		case env := <-got:
			if env.ID != want.ID {
				continue
			}
			billing, ok := env.Payload.(*messaging.BillingNotification)
			s.Require().True(ok)
			s.True(decimal.NewFromInt(480).Equal(billing.PremiumAmount))
			s.Equal(want.CorrelationID, env.CorrelationID)
			return
		case <-ctx.Done():
			s.Fail("relayed message was not consumed")
			return
		}
	}
}
