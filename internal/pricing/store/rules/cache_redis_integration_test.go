//go:build integration

package rules_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"surety/internal/pricing/models"
	"surety/internal/pricing/store/rules"
	"surety/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *rules.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = rules.NewRedisCache(s.redis.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripAndTTL() {
	ctx := context.Background()
	pct := decimal.NewFromInt(10)
	in := []models.PricingRule{{
		ID:                   uuid.New(),
		Name:                 "low risk discount",
		RuleType:             models.RuleTypeRiskLevel,
		Operator:             models.OperatorEquals,
		ConditionValue:       map[string]any{"riskLevel": "low"},
		AdjustmentType:       models.AdjustmentDiscount,
		AdjustmentPercentage: &pct,
		IsActive:             true,
		EffectiveDate:        time.Now().UTC().Truncate(time.Second),
	}}

	_, ok, err := s.cache.Get(ctx)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Set(ctx, in, 30*time.Minute))
	got, ok, err := s.cache.Get(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Len(got, 1)
	s.Equal(in[0].ID, got[0].ID)
	s.True(pct.Equal(*got[0].AdjustmentPercentage))

	ttl, err := s.redis.Client.TTL(ctx, "pricing:rules:active").Result()
	s.Require().NoError(err)
	s.InDelta(30*time.Minute, ttl, float64(5*time.Second))

	s.Require().NoError(s.cache.Invalidate(ctx))
	_, ok, err = s.cache.Get(ctx)
	s.Require().NoError(err)
	s.False(ok)
}
