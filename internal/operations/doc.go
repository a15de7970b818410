// Package operations orchestrates the reconciliation pipeline as a sequence of
// dependent steps.
//
// Steps:
//
//   - standardize: normalizes each raw source table
//   - clean: imputes missing values in each standardized table
//   - scale: min-max scales the cleaned tables (optional)
//   - merge: joins the cleaned tables into the merged dataset
//   - master: builds the master table from the merged dataset
//
// Core Components:
//
// Manager runs steps in dependency order, one at a time. A failed step blocks
// its dependents, and cancellation is honoured between steps. Steps are never
// retried.
//
// Registry holds the registered steps and resolves their execution order.
//
// OperationState and StepState track the runtime status of a run. Every run
// also fills a PipelineManifest that is written next to the final outputs.
//
// JobQueue executes submitted runs in the background for the HTTP API.
//
// Example usage:
//
//	registry := operations.NewRegistry()
//	if err := operations.RegisterPipelineSteps(registry, env); err != nil {
//		return err
//	}
//	manager := operations.NewManager(registry, operations.NewConfig(), tracer, logger)
//
//	resp, err := manager.Execute(ctx, operations.OperationRequest{Step: operations.StepIDMerge})
package operations
