package service

import (
	"context"
	"errors"
	"time"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/metrics"
	"github.com/quiltchat/message-service/internal/ratelimit"
	"github.com/quiltchat/message-service/internal/store"
)

type ToggleAction string

const (
	ActionAdded   ToggleAction = "added"
	ActionRemoved ToggleAction = "removed"
)

type ToggleInput struct {
	ConversationID string
	Scope          domain.Scope
	MessageID      string
	Emoji          string
	ActorID        string
}

type ToggleOutput struct {
	Action           ToggleAction
	ReactionsSummary map[string]int
}

// Toggle flips the actor's reaction for one emoji. The reaction subdocument
// and the message's denormalized summary are read and written in one atomic
// transaction, so two concurrent toggles on the same (message, emoji)
// serialize through the store's conflict detection. The body is re-executed
// on conflict and is safe to re-run.
func (s *Service) Toggle(ctx context.Context, in ToggleInput) (*ToggleOutput, error) {
	if in.ActorID == "" {
		return nil, domain.NewError(domain.CodeUnauthenticated, "unauthenticated")
	}
	if err := domain.ValidateMessageRef(in.ConversationID, in.MessageID); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmoji(in.Emoji); err != nil {
		return nil, err
	}
	if !s.guard.CheckMembership(ctx, in.ConversationID, in.Scope, in.ActorID) {
		return nil, domain.NewError(domain.CodePermissionDenied, domain.ReasonNotAMember)
	}
	if !s.limiter.Allow(ctx, in.ActorID, ratelimit.ClassReaction, s.limits.ReactionsPerMinute, time.Minute) {
		metrics.RateLimitDenials.WithLabelValues(ratelimit.ClassReaction).Inc()
		return nil, domain.NewError(domain.CodeResourceExhausted, domain.ReasonRateLimited)
	}

	var out ToggleOutput
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.GetMessage(ctx, in.ConversationID, in.MessageID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewError(domain.CodeNotFound, domain.ReasonNotFound)
			}
			return err
		}
		if m.Deleted() {
			return domain.NewError(domain.CodeFailedPrecondition, domain.ReasonMessageDeleted)
		}
		if m.ReactionsSummary == nil {
			m.ReactionsSummary = map[string]int{}
		}
		now := s.now().UTC()

		r, err := tx.GetReaction(ctx, in.ConversationID, in.MessageID, in.Emoji)
		switch {
		case err == nil && r.Has(in.ActorID):
			uids := make([]string, 0, len(r.UIDs)-1)
			for _, u := range r.UIDs {
				if u != in.ActorID {
					uids = append(uids, u)
				}
			}
			if len(uids) == 0 {
				// a reaction document exists iff its uid set is non-empty
				if err := tx.DeleteReaction(ctx, in.ConversationID, in.MessageID, in.Emoji); err != nil {
					return err
				}
				delete(m.ReactionsSummary, in.Emoji)
			} else {
				r.UIDs = uids
				r.Count = len(uids)
				r.UpdatedAt = now
				if err := tx.PutReaction(ctx, r); err != nil {
					return err
				}
				m.ReactionsSummary[in.Emoji] = r.Count
			}
			out.Action = ActionRemoved

		case err == nil:
			r.UIDs = append(r.UIDs, in.ActorID)
			r.Count = len(r.UIDs)
			r.UpdatedAt = now
			if err := tx.PutReaction(ctx, r); err != nil {
				return err
			}
			m.ReactionsSummary[in.Emoji] = r.Count
			out.Action = ActionAdded

		case errors.Is(err, domain.ErrNotFound):
			if len(m.ReactionsSummary) >= domain.MaxEmojiPerMsg {
				return domain.NewError(domain.CodeFailedPrecondition, domain.ReasonMaxEmoji)
			}
			nr := &domain.Reaction{
				ConversationID: in.ConversationID,
				MessageID:      in.MessageID,
				Emoji:          in.Emoji,
				UIDs:           []string{in.ActorID},
				Count:          1,
				UpdatedAt:      now,
			}
			if err := tx.PutReaction(ctx, nr); err != nil {
				return err
			}
			m.ReactionsSummary[in.Emoji] = 1
			out.Action = ActionAdded

		default:
			return err
		}

		// summary goes back onto the message in the same transaction
		if err := tx.PutMessage(ctx, m); err != nil {
			return err
		}
		out.ReactionsSummary = m.ReactionsSummary
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr("toggle reaction", err)
	}

	s.publish(ctx, "message.reaction", in.MessageID, map[string]interface{}{
		"conversation_id": in.ConversationID,
		"message_id":      in.MessageID,
		"emoji":           in.Emoji,
		"actor":           in.ActorID,
		"action":          out.Action,
	})
	return &out, nil
}
