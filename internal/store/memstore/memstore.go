// Package memstore is an in-memory store.Store used by tests and local runs
// without a MongoDB. A single mutex serializes transactions; writes inside a
// transaction are buffered and applied only when the body succeeds.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/store"
)

type Store struct {
	mu sync.Mutex

	conversations map[string]*domain.Conversation
	groupMembers  map[string]*domain.GroupMember
	blocks        map[string]bool
	messages      map[string]*domain.Message
	reactions     map[string]*domain.Reaction
	rateWindows   map[string]*domain.RateWindow

	// TxErr, when set, makes RunTransaction fail before running its body.
	// Used to test fail-open behavior.
	TxErr error
}

func New() *Store {
	return &Store{
		conversations: map[string]*domain.Conversation{},
		groupMembers:  map[string]*domain.GroupMember{},
		blocks:        map[string]bool{},
		messages:      map[string]*domain.Message{},
		reactions:     map[string]*domain.Reaction{},
		rateWindows:   map[string]*domain.RateWindow{},
	}
}

func msgKey(convID, msgID string) string             { return convID + ":" + msgID }
func reactionKey(convID, msgID, emoji string) string { return convID + ":" + msgID + ":" + emoji }
func windowKey(actorID, class string) string         { return actorID + ":" + class }

// Seeding helpers for tests.

func (s *Store) PutConversation(c *domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
}

func (s *Store) PutGroupMember(gm *domain.GroupMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupMembers[gm.GroupID+":"+gm.UID] = gm
}

func (s *Store) Block(blocker, blocked string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[blocker+":"+blocked] = true
}

func (s *Store) Unblock(blocker, blocked string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, blocker+":"+blocked)
}

// MessageCount reports stored messages for a conversation.
func (s *Store) MessageCount(convID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.messages {
		if strings.HasPrefix(k, convID+":") {
			n++
		}
	}
	return n
}

// ReactionExists reports whether the (message, emoji) subdocument exists.
func (s *Store) ReactionExists(convID, msgID, emoji string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reactions[reactionKey(convID, msgID, emoji)]
	return ok
}

type tx struct {
	s *Store
	// buffered writes, applied on commit
	putMessages  map[string]*domain.Message
	putReactions map[string]*domain.Reaction
	delReactions map[string]bool
	putWindows   map[string]*domain.RateWindow
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, t store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TxErr != nil {
		return s.TxErr
	}
	t := &tx{
		s:            s,
		putMessages:  map[string]*domain.Message{},
		putReactions: map[string]*domain.Reaction{},
		delReactions: map[string]bool{},
		putWindows:   map[string]*domain.RateWindow{},
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	for k, m := range t.putMessages {
		s.messages[k] = m
	}
	for k := range t.delReactions {
		delete(s.reactions, k)
	}
	for k, r := range t.putReactions {
		s.reactions[k] = r
	}
	for k, w := range t.putWindows {
		s.rateWindows[k] = w
	}
	return nil
}

func copyMessage(m *domain.Message) *domain.Message {
	c := *m
	if m.ReactionsSummary != nil {
		c.ReactionsSummary = make(map[string]int, len(m.ReactionsSummary))
		for k, v := range m.ReactionsSummary {
			c.ReactionsSummary[k] = v
		}
	}
	c.EditHistory = append([]domain.EditRecord(nil), m.EditHistory...)
	c.Attachments = append([]domain.Attachment(nil), m.Attachments...)
	c.ReadBy = append([]string(nil), m.ReadBy...)
	c.DeletedFor = append([]string(nil), m.DeletedFor...)
	return &c
}

func copyReaction(r *domain.Reaction) *domain.Reaction {
	c := *r
	c.UIDs = append([]string(nil), r.UIDs...)
	return &c
}

func (t *tx) GetMessage(ctx context.Context, convID, msgID string) (*domain.Message, error) {
	k := msgKey(convID, msgID)
	if m, ok := t.putMessages[k]; ok {
		return copyMessage(m), nil
	}
	if m, ok := t.s.messages[k]; ok {
		return copyMessage(m), nil
	}
	return nil, domain.ErrNotFound
}

func (t *tx) PutMessage(ctx context.Context, m *domain.Message) error {
	t.putMessages[msgKey(m.ConversationID, m.ID)] = copyMessage(m)
	return nil
}

func (t *tx) GetReaction(ctx context.Context, convID, msgID, emoji string) (*domain.Reaction, error) {
	k := reactionKey(convID, msgID, emoji)
	if t.delReactions[k] {
		return nil, domain.ErrNotFound
	}
	if r, ok := t.putReactions[k]; ok {
		return copyReaction(r), nil
	}
	if r, ok := t.s.reactions[k]; ok {
		return copyReaction(r), nil
	}
	return nil, domain.ErrNotFound
}

func (t *tx) PutReaction(ctx context.Context, r *domain.Reaction) error {
	k := reactionKey(r.ConversationID, r.MessageID, r.Emoji)
	delete(t.delReactions, k)
	t.putReactions[k] = copyReaction(r)
	return nil
}

func (t *tx) DeleteReaction(ctx context.Context, convID, msgID, emoji string) error {
	k := reactionKey(convID, msgID, emoji)
	delete(t.putReactions, k)
	t.delReactions[k] = true
	return nil
}

func (t *tx) GetRateWindow(ctx context.Context, actorID, class string) (*domain.RateWindow, error) {
	k := windowKey(actorID, class)
	if w, ok := t.putWindows[k]; ok {
		c := *w
		return &c, nil
	}
	if w, ok := t.s.rateWindows[k]; ok {
		c := *w
		return &c, nil
	}
	return nil, domain.ErrNotFound
}

func (t *tx) PutRateWindow(ctx context.Context, actorID, class string, w *domain.RateWindow) error {
	c := *w
	t.putWindows[windowKey(actorID, class)] = &c
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (s *Store) GetGroupMember(ctx context.Context, groupID, uid string) (*domain.GroupMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gm, ok := s.groupMembers[groupID+":"+uid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *gm
	return &c, nil
}

func (s *Store) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks[a+":"+b] || s.blocks[b+":"+a], nil
}

func (s *Store) GetMessage(ctx context.Context, convID, msgID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[msgKey(convID, msgID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyMessage(m), nil
}

func (s *Store) ListMessages(ctx context.Context, convID string, limit int64, before time.Time) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Message{}
	for k, m := range s.messages {
		if !strings.HasPrefix(k, convID+":") {
			continue
		}
		if !before.IsZero() && !m.ServerReceivedAt.Before(before) {
			continue
		}
		out = append(out, copyMessage(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ServerReceivedAt.After(out[j].ServerReceivedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, convID, msgID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[msgKey(convID, msgID)]
	if !ok {
		return domain.ErrNotFound
	}
	for _, u := range m.ReadBy {
		if u == uid {
			return nil
		}
	}
	m.ReadBy = append(m.ReadBy, uid)
	return nil
}

func (s *Store) AddDeletedFor(ctx context.Context, convID, msgID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[msgKey(convID, msgID)]
	if !ok {
		return domain.ErrNotFound
	}
	for _, u := range m.DeletedFor {
		if u == uid {
			return nil
		}
	}
	m.DeletedFor = append(m.DeletedFor, uid)
	return nil
}

func (s *Store) UpdateConversationPreview(ctx context.Context, convID string, p *domain.MessagePreview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[convID]
	if !ok {
		return domain.ErrNotFound
	}
	c.LastMessage = p
	c.UpdatedAt = p.SentAt
	return nil
}
