package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "surety/pkg/domain-errors"
)

func TestLockRunner(t *testing.T) {
	t.Run("serializes callbacks on the same shard", func(t *testing.T) {
		r := NewLockRunner()
		ctx := WithShardKey(context.Background(), "policy-1")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			active  int
			overlap bool
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = r.RunInTx(ctx, func(context.Context) error {
					mu.Lock()
					active++
					if active > 1 {
						overlap = true
					}
					mu.Unlock()

					mu.Lock()
					active--
					mu.Unlock()
					return nil
				})
			}()
		}
		wg.Wait()
		assert.False(t, overlap)
	})

	t.Run("nested calls do not deadlock", func(t *testing.T) {
		r := NewLockRunner()
		err := r.RunInTx(context.Background(), func(ctx context.Context) error {
			return r.RunInTx(ctx, func(context.Context) error { return nil })
		})
		require.NoError(t, err)
	})

	t.Run("propagates callback error", func(t *testing.T) {
		r := NewLockRunner()
		want := errors.New("boom")
		err := r.RunInTx(context.Background(), func(context.Context) error { return want })
		require.ErrorIs(t, err, want)
	})

	t.Run("cancelled context is a timeout", func(t *testing.T) {
		r := NewLockRunner()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := r.RunInTx(ctx, func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}
