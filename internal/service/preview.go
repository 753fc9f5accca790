package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/domain"
)

// afterCreate runs the best-effort follow-ups for a freshly created message:
// conversation preview denormalization, preview cache and lifecycle events.
// Nothing here may fail the send; every error is logged and swallowed.
func (s *Service) afterCreate(ctx context.Context, m *domain.Message) {
	p := &domain.MessagePreview{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Kind:       m.Kind,
		SentAt:     m.ServerReceivedAt,
	}
	switch m.Kind {
	case domain.KindText:
		p.Snippet = domain.Snippet(m.Text, domain.MaxSnippetLen)
	default:
		p.Snippet = string(m.Kind)
	}

	if err := s.store.UpdateConversationPreview(ctx, m.ConversationID, p); err != nil {
		s.log.Warn("conversation preview update failed",
			zap.String("conversation", m.ConversationID), zap.Error(err))
	}
	if s.cache != nil {
		if err := s.cache.SetPreview(ctx, m.ConversationID, p); err != nil {
			s.log.Warn("preview cache write failed",
				zap.String("conversation", m.ConversationID), zap.Error(err))
		}
	}
	s.publish(ctx, "message.created", m.ID, map[string]interface{}{
		"conversation_id": m.ConversationID,
		"message":         m,
	})
}
