// Package async runs submitted extraction tasks in the background, either on local
// goroutines or through an asynq queue backed by redis.
package async

import (
	"context"

	"github.com/joseph-ayodele/doc-extractor/internal/pipeline"
)

// Runner executes one task to completion. *pipeline.Orchestrator implements it.
type Runner interface {
	RunTask(ctx context.Context, task pipeline.Task) error
}

// Launcher is a pipeline.Launcher that can be drained on shutdown.
type Launcher interface {
	pipeline.Launcher
	Shutdown(ctx context.Context)
}
