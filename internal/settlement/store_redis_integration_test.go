//go:build integration

package settlement_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"surety/internal/settlement"
	"surety/pkg/platform/sentinel"
	"surety/pkg/testutil/containers"
)

type RedisMarkersSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	markers *settlement.RedisMarkers
}

func TestRedisMarkersSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisMarkersSuite))
}

func (s *RedisMarkersSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.markers = settlement.NewRedisMarkers(s.redis.Client)
}

func (s *RedisMarkersSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// TestConcurrentClaims verifies that exactly one of many racing claims wins.
func (s *RedisMarkersSuite) TestConcurrentClaims() {
	ctx := context.Background()
	const goroutines = 50

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.markers.Claim(ctx, "TXN-RACE", time.Minute)
			if err == nil && ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), won.Load())
}

func (s *RedisMarkersSuite) TestLifecycle() {
	ctx := context.Background()

	claim, ok, err := s.markers.Claim(ctx, "TXN-1", time.Hour)
	s.Require().NoError(err)
	s.True(ok)

	m, err := s.markers.Get(ctx, "TXN-1")
	s.Require().NoError(err)
	s.Equal(settlement.StateProcessing, m.State)

	now := time.Now().UTC().Truncate(time.Second)
	s.Require().NoError(s.markers.Complete(ctx, claim, settlement.Marker{
		TransactionID: "TXN-1",
		PolicyNumber:  "FIA202506000001",
		ProcessedAt:   &now,
	}, time.Hour))

	m, err = s.markers.Get(ctx, "TXN-1")
	s.Require().NoError(err)
	s.Equal(settlement.StateProcessed, m.State)
	s.Equal("FIA202506000001", m.PolicyNumber)
	s.True(now.Equal(*m.ProcessedAt))

	ttl, err := s.redis.Client.TTL(ctx, "payment_processed:TXN-1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)

	_, ok, err = s.markers.Claim(ctx, "TXN-1", time.Hour)
	s.Require().NoError(err)
	s.False(ok, "completed transactions stay claimed")
}

func (s *RedisMarkersSuite) TestRelease() {
	ctx := context.Background()
	claim, _, err := s.markers.Claim(ctx, "TXN-2", time.Hour)
	s.Require().NoError(err)
	s.Require().NoError(s.markers.Release(ctx, claim))

	_, err = s.markers.Get(ctx, "TXN-2")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, ok, err := s.markers.Claim(ctx, "TXN-2", time.Hour)
	s.Require().NoError(err)
	s.True(ok)
}

// TestStaleClaim verifies that a holder whose claim expired cannot release or
// complete the claim a later consumer took.
func (s *RedisMarkersSuite) TestStaleClaim() {
	ctx := context.Background()
	stale, ok, err := s.markers.Claim(ctx, "TXN-3", 50*time.Millisecond)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().Eventually(func() bool {
		_, err := s.markers.Get(ctx, "TXN-3")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)

	current, ok, err := s.markers.Claim(ctx, "TXN-3", time.Hour)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().NoError(s.markers.Release(ctx, stale))
	m, err := s.markers.Get(ctx, "TXN-3")
	s.Require().NoError(err, "stale release leaves the newer claim")
	s.Equal(settlement.StateProcessing, m.State)

	err = s.markers.Complete(ctx, stale, settlement.Marker{PolicyNumber: "FIA-STALE"}, time.Hour)
	s.ErrorIs(err, sentinel.ErrConflict)

	s.Require().NoError(s.markers.Complete(ctx, current, settlement.Marker{PolicyNumber: "FIA-3"}, time.Hour))
	m, err = s.markers.Get(ctx, "TXN-3")
	s.Require().NoError(err)
	s.Equal(settlement.StateProcessed, m.State)

	raw, err := s.redis.Client.Get(ctx, "payment_processed:TXN-3").Result()
	s.Require().NoError(err)
	s.NotContains(raw, "token", "completed markers carry no claim token")
}
