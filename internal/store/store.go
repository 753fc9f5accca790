// Package store defines the persistence ports the write path depends on.
// The mongodb package implements them against MongoDB transactions; memstore
// implements them in memory for tests.
package store

import (
	"context"
	"time"

	"github.com/quiltchat/message-service/internal/domain"
)

// Tx is the view available inside an atomic transaction. All reads and writes
// issued through it commit together or not at all, serialized against
// conflicting concurrent transactions on the documents touched.
type Tx interface {
	GetMessage(ctx context.Context, convID, msgID string) (*domain.Message, error)
	PutMessage(ctx context.Context, m *domain.Message) error

	GetReaction(ctx context.Context, convID, msgID, emoji string) (*domain.Reaction, error)
	PutReaction(ctx context.Context, r *domain.Reaction) error
	DeleteReaction(ctx context.Context, convID, msgID, emoji string) error

	GetRateWindow(ctx context.Context, actorID, class string) (*domain.RateWindow, error)
	PutRateWindow(ctx context.Context, actorID, class string, w *domain.RateWindow) error
}

// Store is the full persistence surface. Point reads outside RunTransaction
// carry no isolation guarantees and are used only where none are needed.
type Store interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	GetGroupMember(ctx context.Context, groupID, uid string) (*domain.GroupMember, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)

	GetMessage(ctx context.Context, convID, msgID string) (*domain.Message, error)
	ListMessages(ctx context.Context, convID string, limit int64, before time.Time) ([]*domain.Message, error)
	MarkRead(ctx context.Context, convID, msgID, uid string) error
	AddDeletedFor(ctx context.Context, convID, msgID, uid string) error

	// UpdateConversationPreview is best-effort denormalization; callers log
	// and swallow its errors.
	UpdateConversationPreview(ctx context.Context, convID string, p *domain.MessagePreview) error
}
