// Command pipeline runs the reconciliation pipeline, or one step of it,
// against the configured data directories and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/Sachi-35/crop-yield-prediction/internal/app"
	"github.com/Sachi-35/crop-yield-prediction/internal/config"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	fs.SetOutput(stderr)
	step := fs.String("step", operations.StepIDFullPipeline, "step to run: full_pipeline, standardize, clean, scale, merge or master")
	configFile := fs.String("config", "", "YAML config file (defaults to "+config.ConfigFileEnv+" or ./"+config.DefaultConfigFile+")")
	sourcesFile := fs.String("sources", "", "YAML source mapping overriding the built-in one")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailed
	}

	b, err := app.NewBootstrap(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to start: %v\n", err)
		return exitFailed
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := b.Providers.Shutdown(shutdownCtx); err != nil {
			b.Logger.Warn("telemetry_shutdown_failed", slog.String("error", err.Error()))
		}
		_ = b.Close()
	}()

	manager, err := b.NewPipeline(app.PipelineOptions{SourcesFile: *sourcesFile})
	if err != nil {
		b.Logger.Error("pipeline_setup_failed", slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "failed to build pipeline: %v\n", err)
		return exitFailed
	}

	if !knownStep(manager, *step) {
		fmt.Fprintf(stderr, "unknown step %q\n", *step)
		fs.Usage()
		return exitUsage
	}

	resp, err := manager.Execute(ctx, operations.OperationRequest{Step: *step})
	if resp != nil {
		printSummary(stdout, resp)
	}
	if err != nil {
		b.Logger.Error("pipeline_failed",
			slog.String("step", *step),
			slog.String("error", err.Error()))
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "pipeline interrupted")
		}
		return exitFailed
	}
	return exitOK
}

func knownStep(m *operations.Manager, step string) bool {
	if step == operations.StepIDFullPipeline {
		return true
	}
	steps, err := m.Steps()
	if err != nil {
		return false
	}
	for _, s := range steps {
		if s.ID == step {
			return true
		}
	}
	return false
}

// printSummary writes one line per executed step
func printSummary(w io.Writer, resp *operations.OperationResponse) {
	ids := make([]string, 0, len(resp.Steps))
	for id := range resp.Steps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return startedBefore(resp.Steps[ids[i]], resp.Steps[ids[j]], ids[i], ids[j])
	})

	fmt.Fprintf(w, "operation %s: %s (%s)\n", resp.ID, resp.Status, resp.Duration)
	for _, id := range ids {
		s := resp.Steps[id]
		line := fmt.Sprintf("  %-12s %s", id, s.Status)
		if s.Error != "" {
			line += ": " + s.Error
		} else if s.Message != "" {
			line += ": " + s.Message
		}
		fmt.Fprintln(w, line)
	}
	if resp.Error != "" {
		fmt.Fprintf(w, "error: %s\n", resp.Error)
	}
}

func startedBefore(a, b *operations.StepState, idA, idB string) bool {
	switch {
	case a.StartTime != nil && b.StartTime != nil && !a.StartTime.Equal(*b.StartTime):
		return a.StartTime.Before(*b.StartTime)
	case a.StartTime != nil && b.StartTime == nil:
		return true
	case a.StartTime == nil && b.StartTime != nil:
		return false
	}
	return idA < idB
}
