package service

import (
	"context"
	"errors"
	"time"

	"github.com/quiltchat/message-service/internal/domain"
)

type ListInput struct {
	ConversationID string
	Scope          domain.Scope
	ActorID        string
	Limit          int64
	Before         time.Time
}

// ListMessages returns a history page, newest first, with the caller's
// delete-for-me tombstones filtered out.
func (s *Service) ListMessages(ctx context.Context, in ListInput) ([]*domain.Message, error) {
	if in.ActorID == "" {
		return nil, domain.NewError(domain.CodeUnauthenticated, "unauthenticated")
	}
	if !s.guard.CheckMembership(ctx, in.ConversationID, in.Scope, in.ActorID) {
		return nil, domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
	}
	limit := in.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	msgs, err := s.store.ListMessages(ctx, in.ConversationID, limit, in.Before)
	if err != nil {
		return nil, wrapStoreErr("list messages", err)
	}
	out := msgs[:0]
	for _, m := range msgs {
		if hiddenFor(m, in.ActorID) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func hiddenFor(m *domain.Message, uid string) bool {
	for _, u := range m.DeletedFor {
		if u == uid {
			return true
		}
	}
	return false
}

// LastMessage serves the conversation preview, cache first, store fallback.
func (s *Service) LastMessage(ctx context.Context, convID string, scope domain.Scope, actorID string) (*domain.MessagePreview, error) {
	if actorID == "" {
		return nil, domain.NewError(domain.CodeUnauthenticated, "unauthenticated")
	}
	if !s.guard.CheckMembership(ctx, convID, scope, actorID) {
		return nil, domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
	}
	if s.cache != nil {
		if p, err := s.cache.GetPreview(ctx, convID); err == nil && p != nil {
			return p, nil
		}
	}
	conv, err := s.store.GetConversation(ctx, convID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.CodeNotFound, domain.ReasonNotFound)
		}
		return nil, wrapStoreErr("last message", err)
	}
	if conv.LastMessage == nil {
		return nil, domain.NewError(domain.CodeNotFound, domain.ReasonNotFound)
	}
	return conv.LastMessage, nil
}

// MarkRead records a read receipt. Idempotent by construction ($addToSet).
func (s *Service) MarkRead(ctx context.Context, convID string, scope domain.Scope, msgID, actorID string) error {
	if actorID == "" {
		return domain.NewError(domain.CodeUnauthenticated, "unauthenticated")
	}
	if err := domain.ValidateMessageRef(convID, msgID); err != nil {
		return err
	}
	if !s.guard.CheckMembership(ctx, convID, scope, actorID) {
		return domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
	}
	if err := s.store.MarkRead(ctx, convID, msgID, actorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.CodeNotFound, domain.ReasonNotFound)
		}
		return wrapStoreErr("mark read", err)
	}
	return nil
}
