package service_test

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/guard"
	"github.com/quiltchat/message-service/internal/ratelimit"
	"github.com/quiltchat/message-service/internal/service"
	"github.com/quiltchat/message-service/internal/store/memstore"
)

// fakeClock lets tests move time across rate-limit and edit windows.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store *memstore.Store
	svc   *service.Service
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	log := zap.NewNop()
	clock := newFakeClock()
	g := guard.New(st, log)
	lim := ratelimit.New(st, log).WithClock(clock.Now)
	svc := service.New(st, g, lim, service.DefaultLimits(), log).WithClock(clock.Now)

	st.PutConversation(&domain.Conversation{
		ID:      "dm1",
		Scope:   domain.ScopeDM,
		Members: []string{"alice", "bob"},
	})
	st.PutConversation(&domain.Conversation{
		ID:    "g1",
		Scope: domain.ScopeGroup,
		Name:  "general",
	})
	st.PutGroupMember(&domain.GroupMember{GroupID: "g1", UID: "alice", Role: domain.RoleMember})
	st.PutGroupMember(&domain.GroupMember{GroupID: "g1", UID: "bob", Role: domain.RoleMember})
	st.PutGroupMember(&domain.GroupMember{GroupID: "g1", UID: "mallory", Role: domain.RoleModerator})

	return &fixture{store: st, svc: svc, clock: clock}
}

func dmSend(actor, msgID, text string) service.SendInput {
	return service.SendInput{
		ConversationID: "dm1",
		Scope:          domain.ScopeDM,
		Kind:           domain.KindText,
		Text:           text,
		ClientID:       "client-1",
		MessageID:      msgID,
		ActorID:        actor,
	}
}

func groupSend(actor, msgID, text string) service.SendInput {
	in := dmSend(actor, msgID, text)
	in.ConversationID = "g1"
	in.Scope = domain.ScopeGroup
	return in
}
