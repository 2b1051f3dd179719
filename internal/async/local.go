package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/pipeline"
)

// LocalLauncher runs each task on its own goroutine. Concurrency is unbounded unless a
// limit is set; tasks over the limit wait for a slot.
type LocalLauncher struct {
	runner Runner
	logger *slog.Logger
	sem    chan struct{}

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type Option func(*LocalLauncher)

// WithMaxConcurrent caps how many tasks run at once. n <= 0 means no cap.
func WithMaxConcurrent(n int) Option {
	return func(l *LocalLauncher) {
		if n > 0 {
			l.sem = make(chan struct{}, n)
		}
	}
}

func NewLocalLauncher(runner Runner, logger *slog.Logger, opts ...Option) *LocalLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	l := &LocalLauncher{runner: runner, logger: logger}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Launch starts task in the background. The task outlives ctx.
func (l *LocalLauncher) Launch(ctx context.Context, task pipeline.Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.logger.Warn("cannot launch: launcher is shutting down", "job_id", task.JobID)
		return fmt.Errorf("%w: launcher is shutting down", common.ErrInternal)
	}
	l.wg.Add(1)
	go l.run(context.WithoutCancel(ctx), task)
	return nil
}

func (l *LocalLauncher) run(ctx context.Context, task pipeline.Task) {
	defer l.wg.Done()
	if l.sem != nil {
		l.sem <- struct{}{}
		defer func() { <-l.sem }()
	}
	start := time.Now()
	if err := l.runner.RunTask(ctx, task); err != nil {
		l.logger.Error("extraction task failed", "job_id", task.JobID, "error", err)
		return
	}
	l.logger.Info("extraction task finished", "job_id", task.JobID, "duration_ms", time.Since(start).Milliseconds())
}

// Shutdown refuses new tasks and waits for running ones until ctx is done.
func (l *LocalLauncher) Shutdown(ctx context.Context) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); l.wg.Wait() }()

	select {
	case <-ctx.Done():
		l.logger.Warn("shutdown interrupted by context")
	case <-done:
		l.logger.Info("launcher drained, shutdown complete")
	}
}
