package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/metrics"
	"github.com/quiltchat/message-service/internal/ratelimit"
	"github.com/quiltchat/message-service/internal/store"
)

type SendInput struct {
	ConversationID string
	Scope          domain.Scope
	Kind           domain.MessageKind
	Text           string
	Attachments    []domain.Attachment
	MentionUIDs    []string
	ReplyTo        *domain.ReplyRef

	ClientID  string
	MessageID string
	CreatedAt time.Time // client clock, advisory

	ActorID     string
	ActorName   string // group scope snapshot
	ActorAvatar string
}

type SendOutput struct {
	Message    *domain.Message
	IsExisting bool
}

// Send creates the message keyed by the client-supplied MessageID. Retrying
// the same MessageID returns the stored message unchanged, so a client retry
// after a timeout that actually committed is harmless. Rate limit is charged
// before the idempotency check, matching upstream behavior: a benign retry
// still costs one quota unit.
func (s *Service) Send(ctx context.Context, in SendInput) (*SendOutput, error) {
	if in.ActorID == "" {
		return nil, domain.NewError(domain.CodeUnauthenticated, "unauthenticated")
	}
	if err := domain.ValidateSend(in.ConversationID, in.Scope, in.Kind, in.Text, in.Attachments, in.MentionUIDs, in.ClientID, in.MessageID); err != nil {
		return nil, err
	}

	if !s.guard.CheckMembership(ctx, in.ConversationID, in.Scope, in.ActorID) {
		return nil, domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
	}
	if in.Scope == domain.ScopeDM {
		other, ok := s.guard.OtherDMMember(ctx, in.ConversationID, in.ActorID)
		if !ok {
			return nil, domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
		}
		if s.guard.CheckBlocked(ctx, in.ActorID, other) {
			return nil, domain.NewError(domain.CodePermissionDenied, domain.ReasonBlocked)
		}
	}
	if !s.limiter.Allow(ctx, in.ActorID, ratelimit.ClassMessage, s.limits.MessagesPerMinute, time.Minute) {
		metrics.RateLimitDenials.WithLabelValues(ratelimit.ClassMessage).Inc()
		return nil, domain.NewError(domain.CodeResourceExhausted, domain.ReasonRateLimited)
	}

	var out SendOutput
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.GetMessage(ctx, in.ConversationID, in.MessageID)
		if err == nil {
			out = SendOutput{Message: existing, IsExisting: true}
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		m := s.buildMessage(in)
		if err := tx.PutMessage(ctx, m); err != nil {
			return err
		}
		out = SendOutput{Message: m, IsExisting: false}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr("send", err)
	}

	if !out.IsExisting {
		s.afterCreate(ctx, out.Message)
	} else {
		s.log.Debug("idempotent replay",
			zap.String("conversation", in.ConversationID), zap.String("message", in.MessageID))
	}
	return &out, nil
}

func (s *Service) buildMessage(in SendInput) *domain.Message {
	now := s.now().UTC()
	m := &domain.Message{
		ID:               in.MessageID,
		ConversationID:   in.ConversationID,
		Scope:            in.Scope,
		Kind:             in.Kind,
		Text:             in.Text,
		Attachments:      in.Attachments,
		SenderID:         in.ActorID,
		CreatedAt:        in.CreatedAt,
		ServerReceivedAt: now,
		IdempotencyKey:   in.ClientID + ":" + in.MessageID,
		ReplyTo:          in.ReplyTo,
		MentionUIDs:      in.MentionUIDs,
		ReadBy:           []string{},
		DeletedFor:       []string{},
		ReactionsSummary: map[string]int{},
	}
	if in.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	// sender snapshot is captured for groups only and never re-synced
	if in.Scope == domain.ScopeGroup {
		m.SenderName = in.ActorName
		m.SenderAvatar = in.ActorAvatar
	}
	return m
}
