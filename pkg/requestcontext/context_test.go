package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}

func TestCorrelationID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", CorrelationID(ctx))

	ctx = WithCorrelationID(ctx, "saga-9")
	assert.Equal(t, "saga-9", CorrelationID(ctx))
}

func TestActor(t *testing.T) {
	assert.Equal(t, "system", Actor(context.Background()))
	assert.Equal(t, "agent-7", Actor(WithActor(context.Background(), "agent-7")))
}
