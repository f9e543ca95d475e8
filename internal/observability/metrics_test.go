package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesPipelineCollectors(t *testing.T) {
	ParseDegradations().WithLabelValues("video").Inc()
	AnalysisRequests().WithLabelValues("message", "complaint").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `intake_parse_degradations_total{stage="video"}`))
	require.True(t, strings.Contains(string(body), `intake_analysis_requests_total{modality="message",outcome="complaint"}`))
}
