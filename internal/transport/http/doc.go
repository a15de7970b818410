// Package http implements the HTTP handlers of the crop statistics service.
// Handlers stay thin: they parse and validate the request, call a service
// and render the result.
//
// # Endpoints
//
//	GET    /api/states               states of the master table
//	GET    /api/crops?state=         crops, optionally for one state
//	POST   /api/pipeline/run         run the pipeline or one step
//	GET    /api/pipeline/steps       registered steps in dependency order
//	POST   /api/pipeline/jobs        queue a run
//	GET    /api/pipeline/jobs        list queued and finished runs
//	GET    /api/pipeline/jobs/{id}   one job
//	DELETE /api/pipeline/jobs/{id}   cancel a job
//	GET    /healthz                  liveness
//	GET    /readyz                   readiness
//	GET    /metrics                  Prometheus scrape
//
// # Error Handling
//
// Service errors are mapped to internal/errors values and rendered as
// RFC 7807 problem documents:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "no crops found for state \"Atlantis\"",
//	    "instance": "/api/crops",
//	    "trace_id": "..."
//	}
//
// # Testing
//
// Handlers are tested with httptest against testify mocks of the service
// interfaces.
package http
