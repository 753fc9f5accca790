package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/store"
)

type EditInput struct {
	ConversationID string
	Scope          domain.Scope
	MessageID      string
	NewText        string
	ActorID        string
}

type EditOutput struct {
	EditedAt time.Time
}

// Edit replaces the text of the actor's own text message within the edit
// window, appending the prior version to the message's edit history.
func (s *Service) Edit(ctx context.Context, in EditInput) (*EditOutput, error) {
	if in.ActorID == "" {
		return nil, domain.NewError(domain.CodeUnauthenticated, "unauthenticated")
	}
	if err := domain.ValidateEdit(in.ConversationID, in.MessageID, in.NewText); err != nil {
		return nil, err
	}
	if !s.guard.CheckMembership(ctx, in.ConversationID, in.Scope, in.ActorID) {
		return nil, domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
	}

	var out EditOutput
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.GetMessage(ctx, in.ConversationID, in.MessageID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		switch {
		case m.Deleted():
			return domain.NewError(domain.CodeFailedPrecondition, domain.ReasonAlreadyDeleted)
		case m.SenderID != in.ActorID:
			return domain.NewError(domain.CodePermissionDenied, domain.ReasonNotSender)
		case m.Kind != domain.KindText:
			return domain.NewError(domain.CodeFailedPrecondition, domain.ReasonWrongKind)
		case now.Sub(m.ServerReceivedAt) > s.limits.EditWindow:
			return domain.NewError(domain.CodeFailedPrecondition, domain.ReasonWindowExpired)
		}

		m.EditHistory = append(m.EditHistory, domain.EditRecord{
			Text:     m.Text,
			EditedAt: now,
			EditedBy: in.ActorID,
		})
		m.Text = in.NewText
		m.EditedAt = &now
		if err := tx.PutMessage(ctx, m); err != nil {
			return err
		}
		out.EditedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr("edit", err)
	}

	s.publish(ctx, "message.edited", in.MessageID, map[string]interface{}{
		"conversation_id": in.ConversationID,
		"message_id":      in.MessageID,
		"edited_at":       out.EditedAt,
	})
	return &out, nil
}

type DeleteInput struct {
	ConversationID string
	Scope          domain.Scope
	MessageID      string
	ActorID        string
}

type DeleteOutput struct {
	DeletedAt time.Time
}

// DeleteForAll scrubs the message content for everyone. The sender may delete
// within the edit window; group owners, admins and moderators may delete any
// message at any time. Idempotent: deleting an already-deleted message
// returns the original deletion time.
func (s *Service) DeleteForAll(ctx context.Context, in DeleteInput) (*DeleteOutput, error) {
	if in.ActorID == "" {
		return nil, domain.NewError(domain.CodeUnauthenticated, "unauthenticated")
	}
	if err := domain.ValidateMessageRef(in.ConversationID, in.MessageID); err != nil {
		return nil, err
	}
	if !s.guard.CheckMembership(ctx, in.ConversationID, in.Scope, in.ActorID) {
		return nil, domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
	}

	// Role lookups read the store outside the transaction.
	canModerate := in.Scope == domain.ScopeGroup &&
		s.guard.RoleOf(ctx, in.ConversationID, in.ActorID).CanModerate()

	var out DeleteOutput
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.GetMessage(ctx, in.ConversationID, in.MessageID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewError(domain.CodeNotFound, domain.ReasonNotFound)
			}
			return err
		}
		if m.Deleted() {
			out.DeletedAt = m.DeletedAll.At
			return nil
		}

		now := s.now().UTC()
		if !s.mayDeleteForAll(m, in.ActorID, canModerate, now) {
			return domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAuthorized)
		}

		m.DeletedAll = &domain.Deletion{By: in.ActorID, At: now}
		m.Text = domain.DeletedPlaceholder
		m.Attachments = nil
		m.ReplyTo = nil
		m.MentionUIDs = nil
		if err := tx.PutMessage(ctx, m); err != nil {
			return err
		}
		out.DeletedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr("delete", err)
	}

	s.publish(ctx, "message.deleted", in.MessageID, map[string]interface{}{
		"conversation_id": in.ConversationID,
		"message_id":      in.MessageID,
		"deleted_by":      in.ActorID,
		"deleted_at":      out.DeletedAt,
	})
	return &out, nil
}

func (s *Service) mayDeleteForAll(m *domain.Message, actorID string, canModerate bool, now time.Time) bool {
	if m.SenderID == actorID && now.Sub(m.ServerReceivedAt) <= s.limits.EditWindow {
		return true
	}
	return canModerate
}

// DeleteForMe hides the message for the calling actor only. No window, no
// content scrub.
func (s *Service) DeleteForMe(ctx context.Context, in DeleteInput) error {
	if in.ActorID == "" {
		return domain.NewError(domain.CodeUnauthenticated, "unauthenticated")
	}
	if err := domain.ValidateMessageRef(in.ConversationID, in.MessageID); err != nil {
		return err
	}
	if !s.guard.CheckMembership(ctx, in.ConversationID, in.Scope, in.ActorID) {
		return domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
	}
	if err := s.store.AddDeletedFor(ctx, in.ConversationID, in.MessageID, in.ActorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.CodeNotFound, domain.ReasonNotFound)
		}
		return wrapStoreErr("delete for me", err)
	}
	return nil
}

// wrapStoreErr keeps taxonomy errors intact and folds anything else into
// internal.
func wrapStoreErr(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.WrapError(domain.CodeInternal, domain.ReasonInternal, fmt.Errorf("%s: %w", op, err))
}

func (s *Service) publish(ctx context.Context, event, key string, payload map[string]interface{}) {
	if s.events != nil {
		s.events.Publish(event, payload)
	}
	if s.producer != nil {
		payload["event"] = event
		if err := s.producer.Publish(ctx, key, payload); err != nil {
			s.log.Warn("event log publish failed", zap.String("event", event), zap.Error(err))
		}
	}
}
