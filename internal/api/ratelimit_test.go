package api

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIPLimiterConcurrentAccess(t *testing.T) {
	l := newIPLimiter(600, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				l.get("10.0.0.1").Allow()
			}
		}()
	}
	wg.Wait()

	v, ok := l.visitors.Load("10.0.0.1")
	require.True(t, ok)
	last := time.Unix(0, v.(*visitor).lastSeen.Load())
	assert.WithinDuration(t, time.Now(), last, time.Second)
}
