// Package workflow provides a named-step runner so pipeline stages run
// with uniform logging and timing whether or not a durable execution
// facility is available.
package workflow

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// StepFunc is the body of a workflow step.
type StepFunc func(ctx context.Context) (any, error)

// Runner executes named steps in order.
type Runner interface {
	// RunStep executes fn under the given step name. The error from fn
	// is returned unchanged after logging and timing.
	RunStep(ctx context.Context, name string, fn StepFunc) (any, error)
	// Sleep pauses the workflow, honoring context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
}

// LocalRunner runs steps inline in the current process.
type LocalRunner struct {
	logger ectologger.Logger
}

// NewLocalRunner creates an in-process runner.
func NewLocalRunner(logger ectologger.Logger) *LocalRunner {
	return &LocalRunner{logger: logger}
}

func (r *LocalRunner) RunStep(ctx context.Context, name string, fn StepFunc) (any, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.step."+name)
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"step": name})
	log.Debug("Running workflow step")

	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.StepDuration.WithLabelValues(name, status).Observe(elapsed.Seconds())

	if err != nil {
		log.WithError(err).WithFields(map[string]any{"duration_ms": elapsed.Milliseconds()}).Error("Workflow step failed")
		return nil, err
	}

	log.WithFields(map[string]any{"duration_ms": elapsed.Milliseconds()}).Debug("Workflow step completed")
	return result, nil
}

func (r *LocalRunner) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
