package utils_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/complaint-intake-api/internal/utils"
)

func TestOKIncludesMetaAndDefaults(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		data := map[string]string{"summary": "charged twice"}
		meta := map[string]int{"count": 1}
		return utils.OK(c, data, "", meta)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Error   *string                `json:"error"`
		Data    map[string]string      `json:"data"`
		Meta    map[string]interface{} `json:"meta"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Nil(t, payload.Error)
	require.Equal(t, "charged twice", payload.Data["summary"])
	require.Equal(t, float64(1), payload.Meta["count"])
}

func TestFailIncludesErrorAndDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		details := map[string]string{"field": "userId"}
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", details)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Error   string                 `json:"error"`
		Details map[string]string      `json:"details"`
		Data    map[string]interface{} `json:"data"`
	}
	decode(t, resp, &payload)

	require.False(t, payload.Success)
	require.Equal(t, "invalid payload", payload.Message)
	require.Equal(t, "invalid payload", payload.Error)
	require.Equal(t, "userId", payload.Details["field"])
	require.Nil(t, payload.Data)
}

func TestSendErrorDefaultsStatusAndMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendError(c, 0, "")
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var payload map[string]interface{}
	decode(t, resp, &payload)
	require.Equal(t, "error", payload["error"])
	require.Equal(t, false, payload["success"])
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	app.Post("/complaints", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })
	app.Get("/conflict", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusConflict, "already exists") })
	app.Post("/upload", func(c *fiber.Ctx) error { return fiber.ErrRequestEntityTooLarge })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db password leaked") })

	cases := []struct {
		name    string
		method  string
		path    string
		status  int
		message string
	}{
		{name: "unknown_route", method: http.MethodGet, path: "/missing", status: fiber.StatusNotFound, message: "Cannot GET /missing"},
		{name: "wrong_method", method: http.MethodGet, path: "/complaints", status: fiber.StatusMethodNotAllowed, message: "Method Not Allowed"},
		{name: "fiber_error", method: http.MethodGet, path: "/conflict", status: fiber.StatusConflict, message: "already exists"},
		{name: "too_large", method: http.MethodPost, path: "/upload", status: fiber.StatusRequestEntityTooLarge, message: "Request Entity Too Large"},
		{name: "plain_error", method: http.MethodGet, path: "/boom", status: fiber.StatusInternalServerError, message: "Internal Server Error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performRequest(t, app, tc.method, tc.path)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)

			var payload utils.APIResponse
			decode(t, resp, &payload)
			require.False(t, payload.Success)
			require.Equal(t, tc.message, payload.Message)
			require.Equal(t, tc.message, payload.Error)
		})
	}
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
