package xkeylock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xshield/pkg/util/xkeylock"
)

func TestLocker(t *testing.T) {
	t.Run("SerializesSameKey", func(t *testing.T) {
		l, err := xkeylock.New()
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			counter int
		)
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = l.Do(context.Background(), "k", func() error {
					v := counter
					time.Sleep(time.Microsecond)
					counter = v + 1
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
		assert.Zero(t, l.Len())
	})

	t.Run("ContextCancel", func(t *testing.T) {
		l, err := xkeylock.New()
		require.NoError(t, err)

		h, err := l.Acquire(context.Background(), "k")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(ctx, "k")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		require.NoError(t, h.Unlock())
		assert.ErrorIs(t, h.Unlock(), xkeylock.ErrLockNotHeld)
	})

	t.Run("MaxKeys", func(t *testing.T) {
		l, err := xkeylock.New(xkeylock.WithMaxKeys(1))
		require.NoError(t, err)
		h, err := l.Acquire(context.Background(), "a")
		require.NoError(t, err)
		defer func() { _ = h.Unlock() }()

		_, err = l.Acquire(context.Background(), "b")
		assert.ErrorIs(t, err, xkeylock.ErrMaxKeysExceeded)
	})

	t.Run("Close", func(t *testing.T) {
		l, err := xkeylock.New()
		require.NoError(t, err)
		require.NoError(t, l.Close())
		assert.ErrorIs(t, l.Close(), xkeylock.ErrClosed)
		_, err = l.Acquire(context.Background(), "k")
		assert.ErrorIs(t, err, xkeylock.ErrClosed)
	})

	t.Run("InvalidShardCount", func(t *testing.T) {
		_, err := xkeylock.New(xkeylock.WithShardCount(3))
		assert.ErrorIs(t, err, xkeylock.ErrInvalidShardCount)
	})
}
