package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		m := NewMemory()
		token, ok, err := m.TryLock(ctx, "run", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotEmpty(t, token)

		_, ok, err = m.TryLock(ctx, "run", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, m.Unlock(ctx, "run", token))
		_, ok, err = m.TryLock(ctx, "run", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired lock can be taken over", func(t *testing.T) {
		m := NewMemory()
		now := time.Now()
		m.clock = func() time.Time { return now }
		old, ok, _ := m.TryLock(ctx, "run", time.Second)
		require.True(t, ok)

		now = now.Add(2 * time.Second)
		_, ok, _ = m.TryLock(ctx, "run", time.Second)
		assert.True(t, ok)
		assert.ErrorIs(t, m.Unlock(ctx, "run", old), ErrNotHeld)
	})

	t.Run("keys are independent", func(t *testing.T) {
		m := NewMemory()
		_, ok, _ := m.TryLock(ctx, "a", time.Minute)
		require.True(t, ok)
		_, ok, _ = m.TryLock(ctx, "b", time.Minute)
		assert.True(t, ok)
	})
}
