package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/internal/service"
	"github.com/noah-isme/complaint-intake-api/internal/utils"
)

// AnalysisHandler exposes the complaint classification pipelines.
type AnalysisHandler struct {
	service  service.AnalysisService
	maxBytes int64
	logger   zerolog.Logger
}

// NewAnalysisHandler constructs an analysis handler. maxBytes bounds how much of
// each upload is buffered.
func NewAnalysisHandler(service service.AnalysisService, maxBytes int64, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:  service,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "analysis_handler").Logger(),
	}
}

// Register wires analysis routes.
func (h *AnalysisHandler) Register(router fiber.Router) {
	router.Post("/message", h.message)
	router.Post("/audio", h.audio)
	router.Post("/image", h.image)
	router.Post("/message-image", h.messageImage)
	router.Post("/video", h.video)

	for _, path := range []string{"/message", "/audio", "/image", "/message-image", "/video"} {
		router.Options(path, preflight)
	}
}

func (h *AnalysisHandler) message(c *fiber.Ctx) error {
	var payload dto.MessageAnalysisRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	if payload.UserID == "" {
		payload.UserID = userIDFromRequest(c)
	}

	result, err := h.service.AnalyzeMessage(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to analyse message")
	}

	return utils.SendSuccess(c, "message analysed", result)
}

// audio accepts either a multipart file field or the raw recording as the body.
func (h *AnalysisHandler) audio(c *fiber.Ctx) error {
	upload, err := h.upload(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to read audio upload")
	}
	if !isMultipart(c) && len(upload.Data) == 0 {
		body := c.Body()
		if h.maxBytes > 0 && int64(len(body)) > h.maxBytes+1 {
			body = body[:h.maxBytes+1]
		}
		upload = service.Upload{Data: append([]byte(nil), body...)}
	}

	result, err := h.service.AnalyzeAudio(c.UserContext(), upload, userIDFromRequest(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to analyse audio")
	}

	return utils.SendSuccess(c, "audio analysed", result)
}

func (h *AnalysisHandler) image(c *fiber.Ctx) error {
	upload, err := h.upload(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to read image upload")
	}

	result, err := h.service.DescribeImage(c.UserContext(), upload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to describe image")
	}

	return utils.SendSuccess(c, "image described", result)
}

func (h *AnalysisHandler) messageImage(c *fiber.Ctx) error {
	upload, err := h.upload(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to read image upload")
	}

	result, err := h.service.AnalyzeMessageImage(c.UserContext(), c.FormValue("text"), upload, userIDFromRequest(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to analyse message with image")
	}

	return utils.SendSuccess(c, "message and image analysed", result)
}

func (h *AnalysisHandler) video(c *fiber.Ctx) error {
	upload, err := h.upload(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to read video upload")
	}

	result, err := h.service.AnalyzeVideo(c.UserContext(), upload, userIDFromRequest(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to analyse video")
	}

	return utils.SendSuccess(c, "video analysed", result)
}

func (h *AnalysisHandler) upload(c *fiber.Ctx) (service.Upload, error) {
	if !isMultipart(c) {
		return service.Upload{}, nil
	}
	return formUpload(c, "file", h.maxBytes)
}
