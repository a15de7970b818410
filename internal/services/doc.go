// Package services holds the logic behind the HTTP handlers.
//
// # Available Services
//
//	- DataService: enumerates states and crops of the master table. The
//	  table is loaded at startup and reloaded after every run that rebuilds it.
//	- OperationService: runs the pipeline synchronously through the
//	  operations.Manager or queues it on the operations.JobQueue.
//	- HealthService: liveness from runtime metrics, readiness from the data
//	  directories and the catalog.
//
// # Error Handling
//
// Services return the sentinel errors in errors.go, wrapped with context.
// Pipeline failures surface as operations.OperationError and
// dataprocessing.DataError unchanged, so handlers can map them to problem
// responses with errors.Is and errors.As.
package services
