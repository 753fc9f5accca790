package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/metrics"
	"github.com/quiltchat/message-service/internal/service"
)

const handlerTimeout = 5 * time.Second

type Handlers struct {
	svc *service.Service
	log *zap.Logger
}

func NewHandlers(svc *service.Service, log *zap.Logger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

func actor(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

func actorName(c *fiber.Ctx) string {
	n, _ := c.Locals("user_name").(string)
	return n
}

func statusOf(code domain.Code) int {
	switch code {
	case domain.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case domain.CodeInvalidArgument:
		return fiber.StatusBadRequest
	case domain.CodePermissionDenied:
		return fiber.StatusForbidden
	case domain.CodeFailedPrecondition:
		return fiber.StatusPreconditionFailed
	case domain.CodeResourceExhausted:
		return fiber.StatusTooManyRequests
	case domain.CodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *fiber.Ctx, op string, err error) error {
	code := domain.CodeOf(err)
	reason := domain.ReasonOf(err)
	metrics.OperationResults.WithLabelValues(op, reason).Inc()
	if code == domain.CodeInternal {
		h.log.Error("operation failed", zap.String("operation", op), zap.Error(err))
	}
	return c.Status(statusOf(code)).JSON(fiber.Map{"error": reason, "code": string(code)})
}

func ok(c *fiber.Ctx, op string, status int, body interface{}) error {
	metrics.OperationResults.WithLabelValues(op, "ok").Inc()
	return c.Status(status).JSON(body)
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		Scope       string              `json:"scope"`
		Kind        string              `json:"kind"`
		Text        string              `json:"text"`
		Attachments []domain.Attachment `json:"attachments"`
		MentionUIDs []string            `json:"mention_uids"`
		ReplyTo     *domain.ReplyRef    `json:"reply_to"`
		ClientID    string              `json:"client_id"`
		MessageID   string              `json:"message_id"`
		CreatedAt   time.Time           `json:"created_at"`
		AvatarURL   string              `json:"avatar_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), handlerTimeout)
	defer cancel()

	out, err := h.svc.Send(ctx, service.SendInput{
		ConversationID: c.Params("conv_id"),
		Scope:          domain.Scope(req.Scope),
		Kind:           domain.MessageKind(req.Kind),
		Text:           req.Text,
		Attachments:    req.Attachments,
		MentionUIDs:    req.MentionUIDs,
		ReplyTo:        req.ReplyTo,
		ClientID:       req.ClientID,
		MessageID:      req.MessageID,
		CreatedAt:      req.CreatedAt,
		ActorID:        actor(c),
		ActorName:      actorName(c),
		ActorAvatar:    req.AvatarURL,
	})
	if err != nil {
		return h.fail(c, "send", err)
	}
	status := fiber.StatusCreated
	if out.IsExisting {
		status = fiber.StatusOK
	}
	return ok(c, "send", status, fiber.Map{"message": out.Message, "is_existing": out.IsExisting})
}

func (h *Handlers) editMessage(c *fiber.Ctx) error {
	var req struct {
		Scope string `json:"scope"`
		Text  string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), handlerTimeout)
	defer cancel()

	out, err := h.svc.Edit(ctx, service.EditInput{
		ConversationID: c.Params("conv_id"),
		Scope:          domain.Scope(req.Scope),
		MessageID:      c.Params("msg_id"),
		NewText:        req.Text,
		ActorID:        actor(c),
	})
	if err != nil {
		return h.fail(c, "edit", err)
	}
	return ok(c, "edit", fiber.StatusOK, fiber.Map{"edited_at": out.EditedAt})
}

func (h *Handlers) deleteMessage(c *fiber.Ctx) error {
	in := service.DeleteInput{
		ConversationID: c.Params("conv_id"),
		Scope:          domain.Scope(c.Query("scope")),
		MessageID:      c.Params("msg_id"),
		ActorID:        actor(c),
	}
	ctx, cancel := context.WithTimeout(c.Context(), handlerTimeout)
	defer cancel()

	if c.Query("for", "all") == "me" {
		if err := h.svc.DeleteForMe(ctx, in); err != nil {
			return h.fail(c, "delete_for_me", err)
		}
		return ok(c, "delete_for_me", fiber.StatusOK, fiber.Map{"status": "ok"})
	}
	out, err := h.svc.DeleteForAll(ctx, in)
	if err != nil {
		return h.fail(c, "delete_for_all", err)
	}
	return ok(c, "delete_for_all", fiber.StatusOK, fiber.Map{"deleted_at": out.DeletedAt})
}

func (h *Handlers) toggleReaction(c *fiber.Ctx) error {
	var req struct {
		Scope string `json:"scope"`
		Emoji string `json:"emoji"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), handlerTimeout)
	defer cancel()

	out, err := h.svc.Toggle(ctx, service.ToggleInput{
		ConversationID: c.Params("conv_id"),
		Scope:          domain.Scope(req.Scope),
		MessageID:      c.Params("msg_id"),
		Emoji:          req.Emoji,
		ActorID:        actor(c),
	})
	if err != nil {
		return h.fail(c, "toggle_reaction", err)
	}
	return ok(c, "toggle_reaction", fiber.StatusOK, fiber.Map{
		"action":            out.Action,
		"reactions_summary": out.ReactionsSummary,
	})
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), handlerTimeout)
	defer cancel()
	err := h.svc.MarkRead(ctx, c.Params("conv_id"), domain.Scope(c.Query("scope")), c.Params("msg_id"), actor(c))
	if err != nil {
		return h.fail(c, "mark_read", err)
	}
	return ok(c, "mark_read", fiber.StatusOK, fiber.Map{"status": "ok"})
}

func (h *Handlers) listMessages(c *fiber.Ctx) error {
	var before time.Time
	if q := c.Query("before"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid before"})
		}
		before = t
	}
	ctx, cancel := context.WithTimeout(c.Context(), handlerTimeout)
	defer cancel()

	msgs, err := h.svc.ListMessages(ctx, service.ListInput{
		ConversationID: c.Params("conv_id"),
		Scope:          domain.Scope(c.Query("scope")),
		ActorID:        actor(c),
		Limit:          int64(c.QueryInt("limit", 50)),
		Before:         before,
	})
	if err != nil {
		return h.fail(c, "list", err)
	}
	return ok(c, "list", fiber.StatusOK, fiber.Map{"messages": msgs})
}

func (h *Handlers) lastMessage(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), handlerTimeout)
	defer cancel()
	p, err := h.svc.LastMessage(ctx, c.Params("conv_id"), domain.Scope(c.Query("scope")), actor(c))
	if err != nil {
		return h.fail(c, "last_message", err)
	}
	return ok(c, "last_message", fiber.StatusOK, fiber.Map{"last_message": p})
}
