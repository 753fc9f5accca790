// Package guard resolves conversation membership, mutual-block state and
// group roles for an actor. Every resolution failure is treated as a denial:
// a missing conversation means "not a member".
package guard

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/store"
)

type Guard struct {
	store store.Store
	log   *zap.Logger
}

func New(s store.Store, log *zap.Logger) *Guard {
	return &Guard{store: s, log: log}
}

// CheckMembership reports whether actor belongs to the conversation. For DMs
// the actor must be one of the two members; for groups a per-member record
// must exist.
func (g *Guard) CheckMembership(ctx context.Context, convID string, scope domain.Scope, actorID string) bool {
	switch scope {
	case domain.ScopeDM:
		conv, err := g.store.GetConversation(ctx, convID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				g.log.Warn("membership lookup failed", zap.String("conversation", convID), zap.Error(err))
			}
			return false
		}
		for _, m := range conv.Members {
			if m == actorID {
				return true
			}
		}
		return false
	case domain.ScopeGroup:
		_, err := g.store.GetGroupMember(ctx, convID, actorID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				g.log.Warn("group member lookup failed", zap.String("group", convID), zap.Error(err))
			}
			return false
		}
		return true
	default:
		return false
	}
}

// CheckBlocked is symmetric: true if either actor has blocked the other.
// Lookup failures fail closed (treated as blocked).
func (g *Guard) CheckBlocked(ctx context.Context, a, b string) bool {
	blocked, err := g.store.IsBlocked(ctx, a, b)
	if err != nil {
		g.log.Warn("block lookup failed", zap.String("a", a), zap.String("b", b), zap.Error(err))
		return true
	}
	return blocked
}

// OtherDMMember resolves the peer of actorID in a two-member DM.
func (g *Guard) OtherDMMember(ctx context.Context, convID, actorID string) (string, bool) {
	conv, err := g.store.GetConversation(ctx, convID)
	if err != nil {
		return "", false
	}
	for _, m := range conv.Members {
		if m != actorID {
			return m, true
		}
	}
	return "", false
}

// RoleOf returns the actor's group role, RoleNone when absent.
func (g *Guard) RoleOf(ctx context.Context, groupID, uid string) domain.Role {
	gm, err := g.store.GetGroupMember(ctx, groupID, uid)
	if err != nil {
		return domain.RoleNone
	}
	return gm.Role
}
