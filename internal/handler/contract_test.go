package handler_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/internal/service"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func validateBody(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	payload, err := jsonschema.UnmarshalJSON(strings.NewReader(string(body)))
	require.NoError(t, err)
	require.NoError(t, schema.Validate(payload), string(body))
}

func TestAnalysisResultContract(t *testing.T) {
	schema := compileSchema(t, "analysis_result.schema.json")

	results := map[string]dto.AnalysisResult{
		"complaint_with_record": {
			Complaint:  true,
			Summary:    "Charged twice",
			Product:    strPtr("Credit card"),
			SubProduct: strPtr("Billing dispute"),
			Record: &dto.ComplaintResponse{
				ID:         3,
				UserID:     "u-1",
				Complaint:  true,
				Summary:    "Charged twice",
				Product:    "Credit card",
				SubProduct: "Billing dispute",
				DateSent:   time.Now().UTC(),
			},
		},
		"not_complaint": {Summary: "Asked about opening hours"},
	}

	for name, result := range results {
		t.Run(name, func(t *testing.T) {
			app := newAnalysisApp(&mockAnalysisService{result: result}, 1024)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/message", strings.NewReader(`{"text":"x"}`))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			validateBody(t, schema, resp)
		})
	}
}

func TestVideoResultContract(t *testing.T) {
	schema := compileSchema(t, "video_result.schema.json")
	app := newAnalysisApp(&mockAnalysisService{video: dto.VideoAnalysisResult{
		Summary:    "No summary available",
		Product:    "No product identified",
		SubProduct: "No sub-product identified",
	}}, 1024)

	resp, err := app.Test(multipartRequest(t, "/api/v1/analysis/video", nil, "clip.mp4", []byte("mp4")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateBody(t, schema, resp)
}

func TestErrorContract(t *testing.T) {
	schema := compileSchema(t, "error.schema.json")

	for _, err := range []error{
		fmt.Errorf("%w: No text provided", service.ErrValidation),
		service.ErrUploadTooLarge,
		fmt.Errorf("%w: timeout", service.ErrUpstream),
	} {
		app := newAnalysisApp(&mockAnalysisService{err: err}, 1024)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/message", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		resp, testErr := app.Test(req)
		require.NoError(t, testErr)
		require.GreaterOrEqual(t, resp.StatusCode, fiber.StatusBadRequest)
		validateBody(t, schema, resp)
	}
}
