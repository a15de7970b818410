package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/Sachi-35/crop-yield-prediction/internal/errors"
	mw "github.com/Sachi-35/crop-yield-prediction/internal/middleware"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
	"github.com/Sachi-35/crop-yield-prediction/internal/services"
)

// Job listing bounds
const (
	defaultJobLimit = 20
	maxJobLimit     = 100
)

// RunRequest is the optional body of POST /api/pipeline/run
type RunRequest struct {
	Step       string         `json:"step,omitempty" validate:"omitempty,oneof=full_pipeline standardize clean scale merge master"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// StepsResponse lists the registered steps in dependency order
type StepsResponse struct {
	Steps []operations.StepDescriptor `json:"steps"`
}

// JobsResponse lists queued and finished jobs
type JobsResponse struct {
	Jobs  []*operations.Job `json:"jobs"`
	Count int               `json:"count"`
}

// OperationsHandler runs the pipeline and manages background jobs
type OperationsHandler struct {
	service      OperationServiceInterface
	validate     *validator.Validate
	query        *mw.QueryParamValidator
	tracer       trace.Tracer
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service OperationServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *OperationsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &OperationsHandler{
		service:      service,
		validate:     mw.NewValidator(),
		query:        mw.NewQueryParamValidator(logger, errorHandler),
		tracer:       otel.Tracer("operations-handler"),
		logger:       logger.With(slog.String("component", "operations_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns a chi router for the pipeline endpoints
func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/run", h.Run)
	r.Get("/steps", h.GetSteps)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.SubmitJob)
		r.Get("/", h.ListJobs)
		r.Get("/{id}", h.GetJob)
		r.Delete("/{id}", h.CancelJob)
	})
	return r
}

// Run handles POST /api/pipeline/run. With ?async=true the run is queued
// and the pending job is returned with 202.
func (h *OperationsHandler) Run(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.SubmitJob(w, r)
		return
	}

	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	req, err := h.decodeRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ctx, span := h.tracer.Start(ctx, "operations_handler.run",
		trace.WithAttributes(
			attribute.String("operation.id", req.ID),
			attribute.String("operation.step", req.Step),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "pipeline_run_requested",
		slog.String("operation_id", req.ID),
		slog.String("step", req.Step),
		slog.String("request_id", reqID),
	)

	resp, err := h.service.Run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline run failed")

		var ext map[string]any
		if resp != nil {
			ext = map[string]any{"operation": resp}
		}
		h.errorHandler.HandleErrorWithExtensions(w, r, h.mapError(err), ext)
		return
	}

	span.SetAttributes(attribute.String("operation.status", string(resp.Status)))
	render.JSON(w, r, resp)
}

// GetSteps handles GET /api/pipeline/steps
func (h *OperationsHandler) GetSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := h.service.Steps(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, h.mapError(err))
		return
	}
	render.JSON(w, r, StepsResponse{Steps: steps})
}

// SubmitJob handles POST /api/pipeline/jobs
func (h *OperationsHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.decodeRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	job, err := h.service.Submit(ctx, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.mapError(err))
		return
	}

	h.logger.InfoContext(ctx, "pipeline_job_submitted",
		slog.String("job_id", job.ID),
		slog.String("operation_id", job.OperationID),
		slog.String("request_id", middleware.GetReqID(ctx)),
	)

	w.Header().Set("Location", "/api/pipeline/jobs/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

// ListJobs handles GET /api/pipeline/jobs?status=&step=&limit=
func (h *OperationsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxJobLimit, defaultJobLimit)
	if !ok {
		return
	}
	status, ok := h.query.ValidateEnum(w, r, "status", []string{
		string(operations.JobStatusPending),
		string(operations.JobStatusRunning),
		string(operations.JobStatusCompleted),
		string(operations.JobStatusFailed),
		string(operations.JobStatusCancelled),
	}, "")
	if !ok {
		return
	}

	jobs, err := h.service.ListJobs(r.Context(), operations.JobFilter{
		Status: operations.JobStatus(status),
		Step:   r.URL.Query().Get("step"),
		Limit:  limit,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, h.mapError(err))
		return
	}
	if jobs == nil {
		jobs = []*operations.Job{}
	}
	render.JSON(w, r, JobsResponse{Jobs: jobs, Count: len(jobs)})
}

// GetJob handles GET /api/pipeline/jobs/{id}
func (h *OperationsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, h.mapError(err))
		return
	}
	render.JSON(w, r, job)
}

// CancelJob handles DELETE /api/pipeline/jobs/{id}
func (h *OperationsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.CancelJob(r.Context(), id); err != nil {
		h.errorHandler.HandleError(w, r, h.mapError(err))
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"id": id, "status": "cancelling"})
}

// decodeRequest reads the optional JSON body. An empty body runs the whole
// pipeline.
func (h *OperationsHandler) decodeRequest(r *http.Request) (operations.OperationRequest, error) {
	var body RunRequest
	if r.Body != nil {
		if err := render.DecodeJSON(r.Body, &body); err != nil && !errors.Is(err, io.EOF) {
			return operations.OperationRequest{}, apierrors.InvalidRequestWithError(err)
		}
	}
	if err := mw.ValidateStruct(h.validate, body); err != nil {
		return operations.OperationRequest{}, err
	}
	return operations.OperationRequest{
		ID:         middleware.GetReqID(r.Context()),
		Step:       body.Step,
		Parameters: body.Parameters,
	}, nil
}

// mapError converts service sentinels to API errors
func (h *OperationsHandler) mapError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidStep):
		return apierrors.ErrValidation("step", err.Error())
	case errors.Is(err, services.ErrPipelineDisabled):
		return apierrors.ErrServiceUnavailable
	case errors.Is(err, operations.ErrJobNotCancellable):
		return apierrors.NewWithDetails(http.StatusConflict, "CONFLICT", "Job cannot be cancelled", err.Error())
	}
	return err
}
