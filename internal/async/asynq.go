package async

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/joseph-ayodele/doc-extractor/internal/pipeline"
)

// TypeExtractionRun is the asynq task type carrying a pipeline.Task.
const TypeExtractionRun = "extraction:run"

// DefaultQueue is the asynq queue extraction tasks are sent to.
const DefaultQueue = "extraction"

// NewExtractionTask encodes task for asynq. Jobs are not retried: a failed run has
// already marked its job FAILED. No asynq timeout is set; the orchestrator detaches
// the run from the handler context and bounds it with its own job timeout.
func NewExtractionTask(task pipeline.Task) (*asynq.Task, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeExtractionRun, data, asynq.MaxRetry(0), asynq.Queue(DefaultQueue)), nil
}

// AsynqLauncher enqueues tasks for workers sharing the staging directory.
type AsynqLauncher struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewAsynqLauncher(opt asynq.RedisClientOpt, logger *slog.Logger) *AsynqLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsynqLauncher{client: asynq.NewClient(opt), logger: logger}
}

func (l *AsynqLauncher) Launch(ctx context.Context, task pipeline.Task) error {
	t, err := NewExtractionTask(task)
	if err != nil {
		return err
	}
	info, err := l.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeExtractionRun, err)
	}
	l.logger.Info("queued extraction task", "job_id", task.JobID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

func (l *AsynqLauncher) Shutdown(context.Context) {
	if err := l.client.Close(); err != nil {
		l.logger.Warn("asynq client close failed", "error", err)
	}
}

// ExtractionHandler runs extraction tasks pulled from the queue.
type ExtractionHandler struct {
	runner Runner
	logger *slog.Logger
}

func NewExtractionHandler(runner Runner, logger *slog.Logger) *ExtractionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionHandler{runner: runner, logger: logger}
}

func (h *ExtractionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var task pipeline.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	h.logger.Info("processing extraction task", "job_id", task.JobID)
	if err := h.runner.RunTask(ctx, task); err != nil {
		return fmt.Errorf("run job %s: %v: %w", task.JobID, err, asynq.SkipRetry)
	}
	return nil
}

// NewServeMux routes extraction tasks to h.
func NewServeMux(h *ExtractionHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeExtractionRun, h)
	return mux
}

// NewServer builds an asynq worker server consuming the extraction queue.
func NewServer(opt asynq.RedisClientOpt, concurrency int, logger *slog.Logger) *asynq.Server {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{DefaultQueue: 1},
		Logger:      slogAdapter{logger.With("component", "asynq")},
	})
}

// slogAdapter satisfies asynq.Logger.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
