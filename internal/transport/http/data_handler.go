package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/Sachi-35/crop-yield-prediction/internal/errors"
	mw "github.com/Sachi-35/crop-yield-prediction/internal/middleware"
	"github.com/Sachi-35/crop-yield-prediction/internal/services"
)

// StatesResponse lists the states of the master table
type StatesResponse struct {
	States []string `json:"states"`
}

// CropsResponse lists the crops of the master table
type CropsResponse struct {
	Crops []string `json:"crops"`
}

type cropsQuery struct {
	State string `query:"state" validate:"omitempty,statename"`
}

// DataHandler serves the state and crop catalog with RFC 7807 errors
type DataHandler struct {
	service      DataServiceInterface
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &DataHandler{
		service:      service,
		validate:     mw.NewValidator(),
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the catalog routes
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/states", h.GetStates)
	r.Get("/crops", h.GetCrops)
	return r
}

// GetStates handles GET /api/states
func (h *DataHandler) GetStates(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	states, err := h.service.States(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "states_lookup_failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, h.mapError(err))
		return
	}

	render.JSON(w, r, StatesResponse{States: states})
}

// GetCrops handles GET /api/crops?state=
func (h *DataHandler) GetCrops(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	q := cropsQuery{State: r.URL.Query().Get("state")}
	if err := mw.ValidateStruct(h.validate, q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	crops, err := h.service.Crops(r.Context(), q.State)
	if err != nil {
		h.logger.WarnContext(r.Context(), "crops_lookup_failed",
			slog.String("error", err.Error()),
			slog.String("state", q.State),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, h.mapError(err))
		return
	}

	render.JSON(w, r, CropsResponse{Crops: crops})
}

// mapError converts catalog sentinels to API errors
func (h *DataHandler) mapError(err error) error {
	switch {
	case errors.Is(err, services.ErrCatalogNotLoaded):
		return apierrors.ErrCatalogUnavailable
	case errors.Is(err, services.ErrNoStates):
		return apierrors.New(http.StatusNotFound, "NOT_FOUND", "No states found")
	case errors.Is(err, services.ErrNoCrops):
		return apierrors.New(http.StatusNotFound, "NOT_FOUND", err.Error())
	}
	return err
}
