package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/Sachi-35/crop-yield-prediction/internal/dataprocessing"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
)

// Common error types following RFC 7807
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"
	TypeConflict    = "/errors/conflict"
	TypeMethod      = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeMissingSource       = "/errors/data/missing-source"
	TypeSchemaViolation     = "/errors/data/schema-violation"
	TypeEmptyDataset        = "/errors/data/empty-dataset"
	TypeUnmappableGeography = "/errors/data/unmappable-geography"
	TypeOperationNotFound   = "/errors/operation/not-found"
	TypeOperationCancelled  = "/errors/operation/cancelled"
	TypeOperationFailed     = "/errors/operation/failed"
	TypeCatalogUnavailable  = "/errors/catalog/unavailable"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	h.HandleErrorWithExtensions(w, r, err, nil)
}

// HandleErrorWithExtensions is HandleError with extra members added to the
// problem body
func (h *ErrorHandler) HandleErrorWithExtensions(w http.ResponseWriter, r *http.Request, err error, extensions map[string]any) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request_failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	for k, v := range extensions {
		problem.WithExtension(k, v)
	}
	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	_ = render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var dataErr *dataprocessing.DataError
	if errors.As(err, &dataErr) {
		return dataErrorToProblem(dataErr, r)
	}

	var opErr *operations.OperationError
	if errors.As(err, &opErr) {
		return operationErrorToProblem(opErr, r)
	}

	if errors.Is(err, operations.ErrQueueFull) {
		return h.apiErrorToProblem(ErrQueueFull, r)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "OPERATION_NOT_FOUND":
		problemType = TypeOperationNotFound
	case "CONFLICT":
		problemType = TypeConflict
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE", "QUEUE_FULL":
		problemType = TypeServiceDown
	case "CATALOG_UNAVAILABLE":
		problemType = TypeCatalogUnavailable
	case "PIPELINE_EXECUTION_FAILED":
		problemType = TypeOperationFailed
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// dataErrorToProblem reports input table problems as unprocessable
func dataErrorToProblem(de *dataprocessing.DataError, r *http.Request) *ProblemDetails {
	problemType, title := TypeInternal, "Data Error"
	switch de.Kind {
	case dataprocessing.ErrorKindMissingSourceFile:
		problemType, title = TypeMissingSource, "Missing Source File"
	case dataprocessing.ErrorKindSchemaViolation:
		problemType, title = TypeSchemaViolation, "Schema Violation"
	case dataprocessing.ErrorKindEmptyDataset:
		problemType, title = TypeEmptyDataset, "Empty Dataset"
	case dataprocessing.ErrorKindUnmappableGeography:
		problemType, title = TypeUnmappableGeography, "Unmappable Geography"
	}

	problem := NewProblemDetails(
		http.StatusUnprocessableEntity,
		problemType,
		title,
		de.Error(),
		r.URL.Path,
	).WithExtension("kind", string(de.Kind))
	if de.File != "" {
		problem.WithExtension("file", filepath.Base(de.File))
	}
	if de.Element != "" {
		problem.WithExtension("element", de.Element)
	}
	return problem
}

func operationErrorToProblem(opErr *operations.OperationError, r *http.Request) *ProblemDetails {
	var problem *ProblemDetails
	switch opErr.Type {
	case operations.ErrorTypeNotFound:
		problem = NewProblemDetails(http.StatusNotFound, TypeOperationNotFound, "Not Found", opErr.Error(), r.URL.Path)
	case operations.ErrorTypeCancellation:
		problem = NewProblemDetails(http.StatusConflict, TypeOperationCancelled, "Operation Cancelled", opErr.Error(), r.URL.Path)
	case operations.ErrorTypeValidation:
		problem = NewProblemDetails(http.StatusUnprocessableEntity, TypeValidation, "Step Not Ready", opErr.Error(), r.URL.Path)
	default:
		problem = NewProblemDetails(http.StatusInternalServerError, TypeOperationFailed, "Pipeline Failed", opErr.Error(), r.URL.Path)
	}
	problem.WithExtension("error_type", string(opErr.Type))
	if opErr.Step != "" {
		problem.WithExtension("step", opErr.Step)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered any) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic_recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	_ = render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethod,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = render.Render(w, r, problem)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// JSON writes v with the given status
func (h *ErrorHandler) JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
