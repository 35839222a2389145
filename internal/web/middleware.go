package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"

	"homeflow/internal/model"
)

// RequestLogger logs one line per request after it completes.
func (h *Handler) RequestLogger(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()
	h.logger.Info("Request handled",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(started),
	)
	return err
}

// loginLimiter slows down credential guessing by IP.
func loginLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        10,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many login attempts. Please try again later.",
			})
		},
	})
}

// RequireAuth resolves the session to a member and scopes it to this
// request via locals, so concurrent requests never see each other's actor.
// Requests without a valid session are rejected.
func (h *Handler) RequireAuth(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return unauthorized(c)
	}

	raw, ok := sess.Get(sessionMemberKey).(string)
	if !ok || raw == "" {
		return unauthorized(c)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return unauthorized(c)
	}

	m, err := h.members.Get(id)
	if err != nil {
		// Member was removed while the session was still live.
		if err := sess.Destroy(); err != nil {
			h.logger.Warn("Failed to destroy stale session", "error", err)
		}
		return unauthorized(c)
	}
	c.Locals(actorKey, m)
	return c.Next()
}

// RequireAdmin restricts member administration to owners and admins.
func (h *Handler) RequireAdmin(c *fiber.Ctx) error {
	current := actor(c)
	if current == nil {
		return unauthorized(c)
	}
	if current.Role != model.RoleOwner && current.Role != model.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not allowed"})
	}
	return c.Next()
}
