// Package ratelimit implements a per-actor sliding window counter stored as a
// document per (actor, action class), checked and incremented inside a single
// atomic transaction. The transaction's isolation on that one document is
// what keeps two concurrent requests from both taking the last slot.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/store"
)

// Action classes with independent windows per actor.
const (
	ClassMessage  = "message"
	ClassReaction = "reaction"
)

type Limiter struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

func New(s store.Store, log *zap.Logger) *Limiter {
	return &Limiter{store: s, log: log, now: time.Now}
}

// WithClock overrides the limiter's clock. Tests only.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow consumes one unit of quota if any remains in the current window.
// An expired window resets to {now, 1} rather than inheriting leftover quota.
// Infrastructure errors allow the action: availability wins over strict
// quota enforcement.
func (l *Limiter) Allow(ctx context.Context, actorID, class string, limit int, window time.Duration) bool {
	allowed := true
	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		now := l.now().UTC()
		w, err := tx.GetRateWindow(ctx, actorID, class)
		if errors.Is(err, domain.ErrNotFound) {
			allowed = true
			return tx.PutRateWindow(ctx, actorID, class, &domain.RateWindow{WindowStart: now, Count: 1})
		}
		if err != nil {
			return err
		}
		if now.Sub(w.WindowStart) >= window {
			allowed = true
			return tx.PutRateWindow(ctx, actorID, class, &domain.RateWindow{WindowStart: now, Count: 1})
		}
		if w.Count >= limit {
			// deny without mutation
			allowed = false
			return nil
		}
		allowed = true
		return tx.PutRateWindow(ctx, actorID, class, &domain.RateWindow{WindowStart: w.WindowStart, Count: w.Count + 1})
	})
	if err != nil {
		l.log.Warn("rate limiter transaction failed, allowing",
			zap.String("actor", actorID), zap.String("class", class), zap.Error(err))
		return true
	}
	return allowed
}
