package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/internal/service"
	"github.com/noah-isme/complaint-intake-api/internal/utils"
)

// ComplaintHandler exposes the persisted complaint table.
type ComplaintHandler struct {
	service service.ComplaintService
	guard   fiber.Handler
	logger  zerolog.Logger
}

// NewComplaintHandler constructs a complaint handler. guard protects the schema
// and purge routes; nil leaves them open.
func NewComplaintHandler(service service.ComplaintService, guard fiber.Handler, logger zerolog.Logger) *ComplaintHandler {
	if guard == nil {
		guard = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &ComplaintHandler{
		service: service,
		guard:   guard,
		logger:  logger.With().Str("component", "complaint_handler").Logger(),
	}
}

// Register wires complaint routes.
func (h *ComplaintHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Delete("", h.guard, h.purge)
	router.Get("/setup", h.guard, h.setup)
}

// RegisterProbe wires the database connectivity probe.
func (h *ComplaintHandler) RegisterProbe(router fiber.Router) {
	router.Get("/ping", h.ping)
}

func (h *ComplaintHandler) create(c *fiber.Ctx) error {
	var payload dto.ComplaintCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Insert(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to insert complaint")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "complaint recorded", record)
}

func (h *ComplaintHandler) list(c *fiber.Ctx) error {
	var query dto.ComplaintListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	items, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list complaints")
	}

	return utils.OK(c, items, "complaints retrieved", fiber.Map{"count": len(items)})
}

func (h *ComplaintHandler) purge(c *fiber.Ctx) error {
	result, err := h.service.DeleteAll(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "failed to delete complaints")
	}

	requestLogger(h.logger, c).Info().Int("deleted", len(result.DeletedRows)).Msg("complaints purged")
	return utils.SendSuccess(c, "Data deleted successfully", result)
}

func (h *ComplaintHandler) setup(c *fiber.Ctx) error {
	result, err := h.service.EnsureSchema(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "failed to ensure complaint schema")
	}

	return utils.SendSuccess(c, "Table created successfully", result)
}

func (h *ComplaintHandler) ping(c *fiber.Ctx) error {
	result, err := h.service.Ping(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("database ping failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "Database connection failed")
	}

	return utils.SendSuccess(c, "database reachable", result)
}
