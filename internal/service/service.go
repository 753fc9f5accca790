// Package service implements the message write path: idempotent creation,
// bounded editing, authorized deletion and atomic reaction toggling.
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/cache"
	"github.com/quiltchat/message-service/internal/events"
	"github.com/quiltchat/message-service/internal/guard"
	"github.com/quiltchat/message-service/internal/kafka"
	"github.com/quiltchat/message-service/internal/ratelimit"
	"github.com/quiltchat/message-service/internal/store"
)

// Limits carries the write-path policy knobs.
type Limits struct {
	MessagesPerMinute  int
	ReactionsPerMinute int
	EditWindow         time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MessagesPerMinute:  30,
		ReactionsPerMinute: 10,
		EditWindow:         15 * time.Minute,
	}
}

type Service struct {
	store   store.Store
	guard   *guard.Guard
	limiter *ratelimit.Limiter
	limits  Limits

	// best-effort collaborators, all nil-able
	cache    *cache.PreviewCache
	events   *events.Publisher
	producer *kafka.Producer

	log *zap.Logger
	now func() time.Time
}

func New(s store.Store, g *guard.Guard, l *ratelimit.Limiter, limits Limits, log *zap.Logger) *Service {
	if limits.MessagesPerMinute == 0 {
		limits = DefaultLimits()
	}
	return &Service{
		store:   s,
		guard:   g,
		limiter: l,
		limits:  limits,
		log:     log,
		now:     time.Now,
	}
}

// WithSideEffects attaches the best-effort collaborators: preview cache,
// realtime publisher and event-log producer. Any of them may be nil.
func (s *Service) WithSideEffects(c *cache.PreviewCache, pub *events.Publisher, prod *kafka.Producer) *Service {
	s.cache = c
	s.events = pub
	s.producer = prod
	return s
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
