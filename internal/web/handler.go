// Package web is the HTTP surface: session-backed authentication and a JSON
// API over the command pipeline.
package web

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"

	"homeflow/internal/assistant"
	"homeflow/internal/device"
	"homeflow/internal/doorlock"
	"homeflow/internal/intent"
	"homeflow/internal/member"
	"homeflow/internal/model"
	"homeflow/internal/orchestrator"
	"homeflow/internal/policy"
	"homeflow/internal/validator"
)

const (
	sessionMemberKey = "member_id"
	actorKey         = "actor"
)

// actor returns the member RequireAuth scoped to this request, or nil on
// routes that run without it.
func actor(c *fiber.Ctx) *model.Member {
	m, _ := c.Locals(actorKey).(*model.Member)
	return m
}

type Handler struct {
	logger    *slog.Logger
	store     *session.Store
	members   *member.Registry
	orch      *orchestrator.Orchestrator
	assistant *assistant.Service
	doors     *doorlock.Subsystem
	devices   *device.Registry
	validator *validator.Validator
}

func NewHandler(logger *slog.Logger, store *session.Store, members *member.Registry, orch *orchestrator.Orchestrator, assistantSvc *assistant.Service, doors *doorlock.Subsystem, devices *device.Registry) *Handler {
	return &Handler{
		logger:    logger.With("component", "web"),
		store:     store,
		members:   members,
		orch:      orch,
		assistant: assistantSvc,
		doors:     doors,
		devices:   devices,
		validator: validator.New(),
	}
}

// RegisterRoutes mounts the API.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Use(h.RequestLogger)
	app.Get("/healthz", h.Health)

	credentials := loginLimiter()
	auth := app.Group("/api/auth")
	auth.Post("/register", credentials, h.Register)
	auth.Post("/login", credentials, h.Login)
	auth.Post("/logout", h.RequireAuth, h.Logout)

	api := app.Group("/api", h.RequireAuth)
	api.Post("/assistant", h.Assistant)
	api.Get("/devices", h.ListDevices)
	api.Post("/devices/set", h.SetDevice)
	api.Get("/doors", h.Doors)
	api.Get("/doors/events", h.DoorEvents)
	api.Post("/doors/lock_all", h.LockAll)
	api.Post("/doors/unlock_all", h.UnlockAll)
	api.Post("/doors/:door/toggle", h.ToggleDoor)

	admin := app.Group("/api/members", h.RequireAuth, h.RequireAdmin)
	admin.Get("/", h.ListMembers)
	admin.Post("/", h.CreateMember)
	admin.Patch("/:id/policy", h.UpdatePolicy)
	admin.Delete("/:id", h.RemoveMember)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Register creates the household's first member as owner; later
// registrations go through the admin endpoint instead.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}
	if len(h.members.List()) > 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "The household already has an owner; ask them to add you",
		})
	}

	m, err := h.members.Register(req.Name, req.Email, req.Password, model.RoleOwner)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	m, err := h.members.Login(req.Email, req.Password)
	if err != nil {
		// Generic message; no email enumeration.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	sess, err := h.store.Get(c)
	if err != nil {
		return h.internalError(c, err)
	}
	sess.Set(sessionMemberKey, m.ID.String())
	if err := sess.Save(); err != nil {
		return h.internalError(c, err)
	}

	h.logger.Info("Member logged in", "member_id", m.ID)
	return c.JSON(m)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			h.logger.Warn("Failed to destroy session", "error", err)
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

type assistantRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

func (h *Handler) Assistant(c *fiber.Ctx) error {
	var req assistantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	current := actor(c)
	if current == nil {
		return unauthorized(c)
	}

	message, err := h.assistant.Handle(c.UserContext(), current, req.Text)
	switch {
	case errors.Is(err, assistant.ErrVoiceNotAllowed):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Voice control is not enabled for your account",
		})
	case errors.Is(err, assistant.ErrTooManyRequests):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many requests. Please slow down.",
		})
	case err != nil:
		return h.internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": message})
}

type setDeviceRequest struct {
	Room   string `json:"room" validate:"required,area|eq=all"`
	Device string `json:"device" validate:"required,device_type"`
	Value  string `json:"value" validate:"required,oneof=on off"`
}

// SetDevice is the direct (non-voice) device path; it reuses the same
// normalization and orchestration as assistant commands.
func (h *Handler) SetDevice(c *fiber.Ctx) error {
	var req setDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	cmd := intent.NormalizeCommand(model.ReplyPayload{
		Action: string(model.ActionDeviceSet),
		Room:   req.Room,
		Device: req.Device,
		Value:  req.Value,
	})
	message := h.orch.Execute(c.UserContext(), actor(c), cmd)
	return c.JSON(fiber.Map{"message": message})
}

func (h *Handler) ListDevices(c *fiber.Ctx) error {
	descriptors := h.devices.Descriptors()
	states := make([]model.DeviceState, 0, len(descriptors))
	for _, d := range descriptors {
		states = append(states, model.DeviceState{DeviceID: d.ID, On: h.devices.State(d.ID)})
	}
	return c.JSON(states)
}

func (h *Handler) Doors(c *fiber.Ctx) error {
	return c.JSON(h.doors.Snapshot())
}

func (h *Handler) DoorEvents(c *fiber.Ctx) error {
	return c.JSON(h.doors.Events())
}

func (h *Handler) ToggleDoor(c *fiber.Ctx) error {
	door, err := model.AreaFromString(c.Params("door"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown door"})
	}
	locked, ok := h.doors.Locked(door)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown door"})
	}

	action := model.ActionLock
	if locked {
		action = model.ActionUnlock
	}
	message := h.orch.Execute(c.UserContext(), actor(c), model.Command{Action: action, Door: door})
	return c.JSON(fiber.Map{"message": message})
}

func (h *Handler) LockAll(c *fiber.Ctx) error {
	message := h.orch.Execute(c.UserContext(), actor(c), model.Command{Action: model.ActionLockAll})
	return c.JSON(fiber.Map{"message": message})
}

func (h *Handler) UnlockAll(c *fiber.Ctx) error {
	message := h.orch.Execute(c.UserContext(), actor(c), model.Command{Action: model.ActionUnlockAll})
	return c.JSON(fiber.Map{"message": message})
}

func (h *Handler) ListMembers(c *fiber.Ctx) error {
	return c.JSON(h.members.List())
}

type createMemberRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=owner admin member"`
}

func (h *Handler) CreateMember(c *fiber.Ctx) error {
	var req createMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	role, err := model.RoleFromString(req.Role)
	if err != nil {
		return badRequest(c, err.Error())
	}
	m, err := h.members.Register(req.Name, req.Email, req.Password, role)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (h *Handler) UpdatePolicy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid member id")
	}
	var patch policy.Patch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Invalid request body")
	}

	m, err := h.members.UpdatePolicy(id, patch)
	if errors.Is(err, member.ErrMemberNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
	}
	if err != nil {
		return h.internalError(c, err)
	}
	return c.JSON(m)
}

func (h *Handler) RemoveMember(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid member id")
	}
	if err := h.members.Remove(id); errors.Is(err, member.ErrMemberNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
	} else if err != nil {
		return h.internalError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not logged in"})
}

func (h *Handler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error("Internal error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong"})
}
