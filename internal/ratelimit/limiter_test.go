package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/ratelimit"
	"github.com/quiltchat/message-service/internal/store/memstore"
)

func newLimiter(t *testing.T) (*ratelimit.Limiter, *memstore.Store, *time.Time) {
	t.Helper()
	st := memstore.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lim := ratelimit.New(st, zap.NewNop()).WithClock(func() time.Time { return now })
	return lim, st, &now
}

func TestAllowDeniesExactlyAtLimit(t *testing.T) {
	lim, _, _ := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 5, time.Minute), "call %d", i+1)
	}
	assert.False(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 5, time.Minute))
	// denial does not mutate the window; still denied
	assert.False(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 5, time.Minute))
}

func TestAllowWindowReset(t *testing.T) {
	lim, _, now := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 3, time.Minute))
	}
	require.False(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 3, time.Minute))

	*now = now.Add(time.Minute)
	// fresh window, full quota again
	for i := 0; i < 3; i++ {
		assert.True(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 3, time.Minute))
	}
	assert.False(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 3, time.Minute))
}

func TestAllowIndependentClassesAndActors(t *testing.T) {
	lim, _, _ := newLimiter(t)
	ctx := context.Background()

	require.True(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 1, time.Minute))
	require.False(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 1, time.Minute))

	assert.True(t, lim.Allow(ctx, "alice", ratelimit.ClassReaction, 1, time.Minute))
	assert.True(t, lim.Allow(ctx, "bob", ratelimit.ClassMessage, 1, time.Minute))
}

func TestAllowFailsOpenOnInfrastructureError(t *testing.T) {
	lim, st, _ := newLimiter(t)
	st.TxErr = errors.New("store down")

	assert.True(t, lim.Allow(context.Background(), "alice", ratelimit.ClassMessage, 1, time.Minute))
	assert.True(t, lim.Allow(context.Background(), "alice", ratelimit.ClassMessage, 1, time.Minute))
}

func TestAllowConcurrentLastSlot(t *testing.T) {
	lim, _, _ := newLimiter(t)
	ctx := context.Background()

	require.True(t, lim.Allow(ctx, "alice", ratelimit.ClassMessage, 2, time.Minute))

	// two concurrent requests race for the single remaining slot
	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- lim.Allow(ctx, "alice", ratelimit.ClassMessage, 2, time.Minute)
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for r := range results {
		if r {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}
