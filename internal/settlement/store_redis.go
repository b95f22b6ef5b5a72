package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"surety/pkg/platform/sentinel"
)

// completeScript overwrites the key only while it still holds the caller's
// claim value.
var completeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0`)

// releaseScript deletes the key only while it still holds the caller's claim
// value.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// storedMarker is the Redis value. Token is set while the id is claimed.
type storedMarker struct {
	Marker
	Token string `json:"token,omitempty"`
}

// RedisMarkers keeps markers in Redis so every consumer instance shares the
// same ledger. Claims use SET NX; completion and release are compare-and-set
// scripts on the claim value.
type RedisMarkers struct {
	client *redis.Client
}

func NewRedisMarkers(client *redis.Client) *RedisMarkers {
	return &RedisMarkers{client: client}
}

func claimValue(c Claim) ([]byte, error) {
	return json.Marshal(storedMarker{
		Marker: Marker{TransactionID: c.TransactionID, State: StateProcessing},
		Token:  c.Token,
	})
}

func (s *RedisMarkers) Claim(ctx context.Context, transactionID string, ttl time.Duration) (Claim, bool, error) {
	c := newClaim(transactionID)
	value, err := claimValue(c)
	if err != nil {
		return Claim{}, false, fmt.Errorf("encode claim: %w", err)
	}
	ok, err := s.client.SetNX(ctx, markerKey(transactionID), value, ttl).Result()
	if err != nil {
		return Claim{}, false, fmt.Errorf("claim transaction %s: %w", transactionID, err)
	}
	if !ok {
		return Claim{}, false, nil
	}
	return c, true, nil
}

func (s *RedisMarkers) Complete(ctx context.Context, c Claim, m Marker, ttl time.Duration) error {
	value, err := claimValue(c)
	if err != nil {
		return fmt.Errorf("encode claim: %w", err)
	}
	m.TransactionID = c.TransactionID
	m.State = StateProcessed
	data, err := json.Marshal(storedMarker{Marker: m})
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	n, err := completeScript.Run(ctx, s.client, []string{markerKey(c.TransactionID)},
		value, data, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("complete transaction %s: %w", c.TransactionID, err)
	}
	if n == 0 {
		return fmt.Errorf("complete transaction %s: claim lost: %w", c.TransactionID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisMarkers) Release(ctx context.Context, c Claim) error {
	value, err := claimValue(c)
	if err != nil {
		return fmt.Errorf("encode claim: %w", err)
	}
	if err := releaseScript.Run(ctx, s.client, []string{markerKey(c.TransactionID)}, value).Err(); err != nil {
		return fmt.Errorf("release transaction %s: %w", c.TransactionID, err)
	}
	return nil
}

func (s *RedisMarkers) Get(ctx context.Context, transactionID string) (*Marker, error) {
	data, err := s.client.Get(ctx, markerKey(transactionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get marker %s: %w", transactionID, err)
	}
	var m storedMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode marker %s: %w", transactionID, err)
	}
	return &m.Marker, nil
}
