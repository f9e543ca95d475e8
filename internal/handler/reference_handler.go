package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/internal/service"
	"github.com/noah-isme/complaint-intake-api/internal/utils"
)

// ReferenceHandler manages the grounding documents used by the category resolver.
type ReferenceHandler struct {
	service  service.ReferenceService
	maxBytes int64
	logger   zerolog.Logger
}

// NewReferenceHandler constructs a reference handler.
func NewReferenceHandler(service service.ReferenceService, maxBytes int64, logger zerolog.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		service:  service,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "reference_handler").Logger(),
	}
}

// Register wires reference routes.
func (h *ReferenceHandler) Register(router fiber.Router) {
	router.Post("", h.ingest)
	router.Post("/ask", h.ask)
	router.Options("", preflight)
	router.Options("/ask", preflight)
}

// ingest accepts the export as the JSON body or as a multipart file.
func (h *ReferenceHandler) ingest(c *fiber.Ctx) error {
	raw := c.Body()
	if isMultipart(c) {
		upload, err := formUpload(c, "file", h.maxBytes)
		if err != nil {
			return respondError(c, h.logger, err, "failed to read reference upload")
		}
		if len(upload.Data) == 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "File is required")
		}
		if h.maxBytes > 0 && int64(len(upload.Data)) > h.maxBytes {
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "File exceeds maximum allowed size")
		}
		raw = upload.Data
	}

	var items []dto.ReferenceItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Ingest(c.UserContext(), items)
	if err != nil {
		return respondError(c, h.logger, err, "failed to ingest reference documents")
	}

	return utils.SendSuccess(c, "reference documents indexed", result)
}

func (h *ReferenceHandler) ask(c *fiber.Ctx) error {
	var payload dto.AskRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	result, err := h.service.Ask(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to answer question")
	}

	return utils.SendSuccess(c, "question answered", result)
}
