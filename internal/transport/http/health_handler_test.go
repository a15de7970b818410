package http

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/services"
)

func TestHealthHandler_HealthCheck(t *testing.T) {
	h := NewHealthHandler(services.NewHealthService("1.0.0", nil, nil, nil, nil), nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, services.StatusOK, body["status"])
	assert.Equal(t, "1.0.0", body["version"])
}

func TestHealthHandler_ReadinessCheck(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name       string
		dirs       map[string]string
		wantStatus int
	}{
		{name: "ready", dirs: map[string]string{"data_dir": dir}, wantStatus: http.StatusOK},
		{name: "missing directory", dirs: map[string]string{"raw_dir": filepath.Join(dir, "absent")}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := readyCatalog{}
			h := NewHealthHandler(services.NewHealthService("dev", tt.dirs, catalog, nil, nil), nil)

			rec := httptest.NewRecorder()
			h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

type readyCatalog struct{}

func (readyCatalog) Stats() services.CatalogStats {
	return services.CatalogStats{Loaded: true, Rows: 1, States: 1, Crops: 1}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pipeline_test_total", Help: "test counter"})
	reg.MustRegister(counter)
	counter.Inc()

	h := NewMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pipeline_test_total 1")

	rec = httptest.NewRecorder()
	NewMetricsHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
