package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "github.com/Sachi-35/crop-yield-prediction/internal/errors"
	"github.com/Sachi-35/crop-yield-prediction/internal/services"
	"github.com/Sachi-35/crop-yield-prediction/internal/shared/testutil"
)

// MockDataService is a mock implementation of DataServiceInterface
type MockDataService struct {
	mock.Mock
}

func (m *MockDataService) States(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDataService) Crops(ctx context.Context, state string) ([]string, error) {
	args := m.Called(state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func newDataHandler(t *testing.T, svc DataServiceInterface) http.Handler {
	logger, _ := testutil.NewTestLogger(t)
	return NewDataHandler(svc, logger, apierrors.NewErrorHandler(logger, false)).Routes()
}

func TestDataHandler_GetStates(t *testing.T) {
	tests := []struct {
		name       string
		states     []string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "success",
			states:     []string{"Bihar", "Punjab"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no states",
			err:        services.ErrNoStates,
			wantStatus: http.StatusNotFound,
			wantType:   apierrors.TypeNotFound,
		},
		{
			name:       "catalog not loaded",
			err:        services.ErrCatalogNotLoaded,
			wantStatus: http.StatusServiceUnavailable,
			wantType:   apierrors.TypeCatalogUnavailable,
		},
		{
			name:       "unexpected error",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantType:   apierrors.TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDataService{}
			if tt.err != nil {
				svc.On("States").Return(nil, tt.err)
			} else {
				svc.On("States").Return(tt.states, nil)
			}

			rec := httptest.NewRecorder()
			newDataHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/states", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, body["type"])
				return
			}
			assert.Equal(t, []any{"Bihar", "Punjab"}, body["states"])
			svc.AssertExpectations(t)
		})
	}
}

func TestDataHandler_GetCrops(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		state      string
		crops      []string
		err        error
		wantStatus int
		wantCrops  []any
	}{
		{
			name:       "all crops",
			query:      "",
			state:      "",
			crops:      []string{"Rice", "Wheat"},
			wantStatus: http.StatusOK,
			wantCrops:  []any{"Rice", "Wheat"},
		},
		{
			name:       "state with ampersand",
			query:      "?state=Jammu+%26+Kashmir",
			state:      "Jammu & Kashmir",
			crops:      []string{"Apple"},
			wantStatus: http.StatusOK,
			wantCrops:  []any{"Apple"},
		},
		{
			name:       "unknown state",
			query:      "?state=Atlantis",
			state:      "Atlantis",
			err:        fmt.Errorf("%w for state %q", services.ErrNoCrops, "Atlantis"),
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDataService{}
			if tt.err != nil {
				svc.On("Crops", tt.state).Return(nil, tt.err)
			} else {
				svc.On("Crops", tt.state).Return(tt.crops, nil)
			}

			rec := httptest.NewRecorder()
			newDataHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crops"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			if tt.err != nil {
				assert.Contains(t, body["detail"], "Atlantis")
			} else {
				assert.Equal(t, tt.wantCrops, body["crops"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDataHandler_GetCropsRejectsInvalidState(t *testing.T) {
	svc := &MockDataService{}

	rec := httptest.NewRecorder()
	newDataHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crops?state=%3Cscript%3E", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, apierrors.TypeValidation, body["type"])
	svc.AssertNotCalled(t, "Crops", mock.Anything)
}

func TestDataHandler_WithRealService(t *testing.T) {
	ds := services.NewDataService(t.TempDir()+"/master_table.csv", nil)

	rec := httptest.NewRecorder()
	newDataHandler(t, ds).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/states", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apierrors.TypeCatalogUnavailable, decodeBody(t, rec)["type"])
}
