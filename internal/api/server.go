package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/auth"
	"github.com/quiltchat/message-service/internal/metrics"
	"github.com/quiltchat/message-service/internal/service"
)

type Options struct {
	SurfacePerMinute int
}

func NewServer(svc *service.Service, jv *auth.Validator, log *zap.Logger, opts Options) *fiber.App {
	app := fiber.New()
	app.Use(logger.New())
	app.Use(func(c *fiber.Ctx) error {
		rid := c.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("request_id", rid)
		c.Set("X-Request-ID", rid)
		return c.Next()
	})
	if opts.SurfacePerMinute > 0 {
		app.Use(newIPLimiter(opts.SurfacePerMinute, log).Handler())
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	h := NewHandlers(svc, log)

	v1 := app.Group("/v1")
	v1.Use(func(c *fiber.Ctx) error {
		hdr := c.Get("Authorization")
		const pref = "Bearer "
		if len(hdr) <= len(pref) || hdr[:len(pref)] != pref {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth"})
		}
		token := hdr[len(pref):]
		sub, err := jv.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("user_id", sub)
		c.Locals("user_name", jv.Name(token))
		return c.Next()
	})

	v1.Post("/conversations/:conv_id/messages", h.sendMessage)
	v1.Get("/conversations/:conv_id/messages", h.listMessages)
	v1.Get("/conversations/:conv_id/last-message", h.lastMessage)
	v1.Patch("/conversations/:conv_id/messages/:msg_id", h.editMessage)
	v1.Delete("/conversations/:conv_id/messages/:msg_id", h.deleteMessage)
	v1.Post("/conversations/:conv_id/messages/:msg_id/reactions", h.toggleReaction)
	v1.Post("/conversations/:conv_id/messages/:msg_id/read", h.markRead)

	return app
}
