// Package app wires configuration, logging, telemetry, the reconciliation
// pipeline and the HTTP layer into runnable entry points.
//
// NewBootstrap resolves directories and opens the logger and OpenTelemetry
// providers. Both binaries start from it: cmd/pipeline builds a Manager with
// Bootstrap.NewPipeline and executes one step, while cmd/web builds a full
// Application around the same Manager.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run blocks until ctx is cancelled, then drains the job queue and shuts the
// server and telemetry down.
package app
