package handler

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/complaint-intake-api/internal/middleware"
	"github.com/noah-isme/complaint-intake-api/internal/service"
	"github.com/noah-isme/complaint-intake-api/internal/utils"
)

const internalErrorMessage = "Internal Server Error"

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// validationMessage returns the caller-facing part of a validation error.
func validationMessage(err error) string {
	message := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	if message == "" || message == service.ErrValidation.Error() {
		return "invalid payload"
	}
	return message
}

// respondError maps service sentinels onto HTTP statuses. Anything unrecognised
// is logged with its detail and answered with a generic 500.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	case errors.Is(err, service.ErrUploadRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "File is required")
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "File exceeds maximum allowed size")
	case errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, "File type not allowed")
	default:
		requestLogger(logger, c).Error().Err(err).Msg(logMessage)
		return utils.SendError(c, fiber.StatusInternalServerError, internalErrorMessage)
	}
}

// preflight answers bare OPTIONS requests with an empty object.
func preflight(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{})
}

// formUpload buffers a multipart file. A missing field yields an empty upload so
// services can report which inputs were absent. At most maxBytes+1 bytes are read.
func formUpload(c *fiber.Ctx, field string, maxBytes int64) (service.Upload, error) {
	header, err := c.FormFile(field)
	if err != nil || header == nil {
		return service.Upload{}, nil
	}
	file, err := header.Open()
	if err != nil {
		return service.Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return service.Upload{}, fmt.Errorf("read upload: %w", err)
	}

	return service.Upload{Name: header.Filename, Data: data}, nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// userIDFromRequest prefers the form field, then the query string.
func userIDFromRequest(c *fiber.Ctx) string {
	if isMultipart(c) {
		if value := strings.TrimSpace(c.FormValue("userId")); value != "" {
			return value
		}
	}
	return strings.TrimSpace(c.Query("userId"))
}
