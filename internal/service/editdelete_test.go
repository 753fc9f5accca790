package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/service"
)

func dmEdit(actor, msgID, text string) service.EditInput {
	return service.EditInput{
		ConversationID: "dm1",
		Scope:          domain.ScopeDM,
		MessageID:      msgID,
		NewText:        text,
		ActorID:        actor,
	}
}

func dmDelete(actor, msgID string) service.DeleteInput {
	return service.DeleteInput{
		ConversationID: "dm1",
		Scope:          domain.ScopeDM,
		MessageID:      msgID,
		ActorID:        actor,
	}
}

func TestEditReplacesTextAndKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, dmSend("alice", "m1", "first"))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	out, err := f.svc.Edit(ctx, dmEdit("alice", "m1", "second"))
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), out.EditedAt)

	m, err := f.store.GetMessage(ctx, "dm1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "second", m.Text)
	require.Len(t, m.EditHistory, 1)
	assert.Equal(t, "first", m.EditHistory[0].Text)
	assert.Equal(t, "alice", m.EditHistory[0].EditedBy)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Edit(ctx, dmEdit("alice", "m1", "third"))
	require.NoError(t, err)
	m, err = f.store.GetMessage(ctx, "dm1", "m1")
	require.NoError(t, err)
	require.Len(t, m.EditHistory, 2)
	assert.Equal(t, "second", m.EditHistory[1].Text)
}

func TestEditWindowBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, dmSend("alice", "m1", "hi"))
	require.NoError(t, err)

	f.clock.Advance(14*time.Minute + 59*time.Second)
	_, err = f.svc.Edit(ctx, dmEdit("alice", "m1", "still fine"))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Second) // now at +15:01
	_, err = f.svc.Edit(ctx, dmEdit("alice", "m1", "too late"))
	require.Error(t, err)
	assert.Equal(t, domain.CodeFailedPrecondition, domain.CodeOf(err))
	assert.Equal(t, domain.ReasonWindowExpired, domain.ReasonOf(err))
}

func TestEditDeniedReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, dmSend("alice", "m1", "hi"))
	require.NoError(t, err)

	_, err = f.svc.Edit(ctx, dmEdit("bob", "m1", "hijack"))
	require.Error(t, err)
	assert.Equal(t, domain.ReasonNotSender, domain.ReasonOf(err))

	media := dmSend("alice", "m2", "")
	media.Kind = domain.KindMedia
	media.Attachments = []domain.Attachment{{URL: "https://cdn.local/a.jpg", MimeType: "image/jpeg"}}
	_, err = f.svc.Send(ctx, media)
	require.NoError(t, err)
	_, err = f.svc.Edit(ctx, dmEdit("alice", "m2", "caption"))
	require.Error(t, err)
	assert.Equal(t, domain.ReasonWrongKind, domain.ReasonOf(err))

	_, err = f.svc.DeleteForAll(ctx, dmDelete("alice", "m1"))
	require.NoError(t, err)
	_, err = f.svc.Edit(ctx, dmEdit("alice", "m1", "after delete"))
	require.Error(t, err)
	assert.Equal(t, domain.ReasonAlreadyDeleted, domain.ReasonOf(err))
}

func TestDeleteForAllScrubsContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dmSend("alice", "m1", "secret")
	in.ReplyTo = &domain.ReplyRef{MessageID: "m0", SenderID: "bob", Kind: domain.KindText, TextSnippet: "q"}
	in.MentionUIDs = []string{"bob"}
	_, err := f.svc.Send(ctx, in)
	require.NoError(t, err)

	out, err := f.svc.DeleteForAll(ctx, dmDelete("alice", "m1"))
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), out.DeletedAt)

	m, err := f.store.GetMessage(ctx, "dm1", "m1")
	require.NoError(t, err)
	assert.True(t, m.Deleted())
	assert.Equal(t, domain.DeletedPlaceholder, m.Text)
	assert.Nil(t, m.Attachments)
	assert.Nil(t, m.ReplyTo)
	assert.Nil(t, m.MentionUIDs)
	assert.Equal(t, "alice", m.DeletedAll.By)
}

func TestDeleteForAllIsTerminalAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, dmSend("alice", "m1", "hi"))
	require.NoError(t, err)

	first, err := f.svc.DeleteForAll(ctx, dmDelete("alice", "m1"))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.svc.DeleteForAll(ctx, dmDelete("alice", "m1"))
	require.NoError(t, err)
	assert.Equal(t, first.DeletedAt, second.DeletedAt)

	m, err := f.store.GetMessage(ctx, "dm1", "m1")
	require.NoError(t, err)
	assert.Equal(t, first.DeletedAt, m.DeletedAll.At)
}

func TestDeleteForAllSenderWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, dmSend("alice", "m1", "hi"))
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)
	_, err = f.svc.DeleteForAll(ctx, dmDelete("alice", "m1"))
	require.Error(t, err)
	assert.Equal(t, domain.ReasonNotAuthorized, domain.ReasonOf(err))
}

func TestDeleteForAllModeratorOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, groupSend("alice", "m1", "spam"))
	require.NoError(t, err)

	// plain member cannot delete someone else's message
	in := service.DeleteInput{ConversationID: "g1", Scope: domain.ScopeGroup, MessageID: "m1", ActorID: "bob"}
	_, err = f.svc.DeleteForAll(ctx, in)
	require.Error(t, err)
	assert.Equal(t, domain.ReasonNotAuthorized, domain.ReasonOf(err))

	// moderator can, even long after the window
	f.clock.Advance(24 * time.Hour)
	in.ActorID = "mallory"
	out, err := f.svc.DeleteForAll(ctx, in)
	require.NoError(t, err)

	m, err := f.store.GetMessage(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, out.DeletedAt, m.DeletedAll.At)
	assert.Equal(t, "mallory", m.DeletedAll.By)
}

func TestDeleteForAllGroupRoleCheckCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, groupSend("alice", "m1", "spam"))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	// The role lookup must not read the store while the delete transaction
	// holds it.
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.DeleteForAll(ctx, service.DeleteInput{
			ConversationID: "g1", Scope: domain.ScopeGroup, MessageID: "m1", ActorID: "mallory",
		})
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("DeleteForAll did not return")
	}
}

func TestDeleteForAllNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.DeleteForAll(context.Background(), dmDelete("alice", "ghost"))
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestDeleteForMeHidesOnlyForActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, dmSend("alice", "m1", "hi"))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteForMe(ctx, dmDelete("bob", "m1")))

	bobView, err := f.svc.ListMessages(ctx, service.ListInput{
		ConversationID: "dm1", Scope: domain.ScopeDM, ActorID: "bob",
	})
	require.NoError(t, err)
	assert.Empty(t, bobView)

	aliceView, err := f.svc.ListMessages(ctx, service.ListInput{
		ConversationID: "dm1", Scope: domain.ScopeDM, ActorID: "alice",
	})
	require.NoError(t, err)
	require.Len(t, aliceView, 1)
	assert.Equal(t, "hi", aliceView[0].Text)
}
