package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/config"
	apierrors "github.com/Sachi-35/crop-yield-prediction/internal/errors"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
	optestutil "github.com/Sachi-35/crop-yield-prediction/internal/operations/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Logging.Output = "console"
	cfg.Logging.Level = "error"
	// The prometheus exporter registers globally once per process.
	cfg.Telemetry.EnableMetrics = false
	cfg.Server.RateLimit.Enabled = false
	return cfg
}

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	application, err := NewApplication(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.bootstrap.Close() })
	return application
}

func serve(t *testing.T, a *Application, method, target string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	var decoded map[string]any
	// Non-JSON bodies such as /metrics leave decoded nil.
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func TestNewApplication(t *testing.T) {
	a := newTestApplication(t)

	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.Server)
	assert.NotNil(t, a.Manager)
	assert.NotNil(t, a.JobQueue)
	assert.Equal(t, ":8080", a.Server.Addr)
	assert.DirExists(t, a.Paths.FinalDir)
	assert.NoDirExists(t, a.Paths.RawDir)
}

func TestNewApplication_InvalidSourcesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.SourcesFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewApplication(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source specs")
}

func TestRouter_HealthAndErrors(t *testing.T) {
	a := newTestApplication(t)

	t.Run("healthz", func(t *testing.T) {
		rec, body := serve(t, a, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		assert.NotNil(t, body)
	})

	t.Run("readyz before first run", func(t *testing.T) {
		rec, _ := serve(t, a, http.MethodGet, "/readyz", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec, body := serve(t, a, http.MethodGet, "/api/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apierrors.TypeNotFound, body["type"])
	})

	t.Run("catalog not loaded", func(t *testing.T) {
		rec, body := serve(t, a, http.MethodGet, "/api/states", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, apierrors.TypeCatalogUnavailable, body["type"])
	})

	t.Run("unsupported media type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", bytes.NewReader([]byte("step=merge")))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec, _ := serve(t, a, http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouter_Steps(t *testing.T) {
	a := newTestApplication(t)

	rec, body := serve(t, a, http.MethodGet, "/api/pipeline/steps", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	steps, ok := body["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 5)
	assert.Equal(t, operations.StepIDStandardize, steps[0].(map[string]any)["id"])
	assert.Equal(t, operations.StepIDMaster, steps[len(steps)-1].(map[string]any)["id"])
}

func TestRouter_RunThenQueryCatalog(t *testing.T) {
	a := newTestApplication(t)
	require.NoError(t, os.MkdirAll(a.Paths.RawDir, 0o755))
	optestutil.WriteRawSources(t, a.Paths.RawDir)

	rec, body := serve(t, a, http.MethodPost, "/api/pipeline/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(operations.OperationStatusCompleted), body["status"])
	assert.FileExists(t, a.Paths.MasterTablePath())

	rec, body = serve(t, a, http.MethodGet, "/api/states", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["states"], "Punjab")
	assert.Contains(t, body["states"], "Odisha")
	assert.NotContains(t, body["states"], "Orissa")

	rec, body = serve(t, a, http.MethodGet, "/api/crops?state=punjab", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["crops"])

	rec, body = serve(t, a, http.MethodGet, "/api/crops?state=Atlantis", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.TypeNotFound, body["type"])

	rec, _ = serve(t, a, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RunSingleStepWithoutInputs(t *testing.T) {
	a := newTestApplication(t)

	rec, body := serve(t, a, http.MethodPost, "/api/pipeline/run", []byte(`{"step":"merge"}`))
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
	require.Contains(t, body, "operation")
	op := body["operation"].(map[string]any)
	assert.Equal(t, string(operations.OperationStatusFailed), op["status"])
}

func TestBootstrap_NewPipeline(t *testing.T) {
	b, err := NewBootstrap(testConfig(t))
	require.NoError(t, err)
	defer b.Close()

	m, err := b.NewPipeline(PipelineOptions{})
	require.NoError(t, err)
	steps, err := m.Steps()
	require.NoError(t, err)
	assert.Len(t, steps, 5)

	bad := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sources: ["), 0o644))
	_, err = b.NewPipeline(PipelineOptions{SourcesFile: bad})
	assert.Error(t, err)
}
