package api

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ipLimiter throttles the raw HTTP surface per client IP, in front of the
// per-actor policy limiter. Stale entries are swept in the background.
type ipLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	log      *zap.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos, written by get, read by sweep
}

func newIPLimiter(perMinute int, log *zap.Logger) *ipLimiter {
	l := &ipLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: 10,
		log:   log,
	}
	go l.sweep()
	return l
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	if v, ok := l.visitors.Load(ip); ok {
		vi := v.(*visitor)
		vi.lastSeen.Store(time.Now().UnixNano())
		return vi.limiter
	}
	vi := &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
	vi.lastSeen.Store(time.Now().UnixNano())
	l.visitors.Store(ip, vi)
	return vi.limiter
}

func (l *ipLimiter) sweep() {
	for {
		time.Sleep(time.Minute)
		cutoff := time.Now().Add(-5 * time.Minute).UnixNano()
		l.visitors.Range(func(k, v interface{}) bool {
			if v.(*visitor).lastSeen.Load() < cutoff {
				l.visitors.Delete(k)
			}
			return true
		})
	}
}

func (l *ipLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.get(c.IP()).Allow() {
			l.log.Debug("surface rate limit", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		}
		return c.Next()
	}
}
