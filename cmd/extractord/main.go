package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/doc-extractor/internal/app"
	"github.com/joseph-ayodele/doc-extractor/internal/async"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/doc-extractor/internal/repository"
	"github.com/joseph-ayodele/doc-extractor/internal/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("extractord stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *common.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, app.DatabaseConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		return fmt.Errorf("database health: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	jobs := repo.NewExtractJobRepository(db, logger)
	if cfg.Jobs.Timeout > 0 {
		// Jobs older than the timeout were orphaned by a previous process.
		n, err := jobs.FailStale(ctx, time.Now().Add(-cfg.Jobs.Timeout), "extraction was interrupted, please retry")
		if err != nil {
			return fmt.Errorf("sweep stale jobs: %w", err)
		}
		logger.Info("stale job sweep done", "failed", n, "older_than", cfg.Jobs.Timeout)
	}

	dispatcher, closeEngine := app.NewDispatcher(cfg, logger)
	defer func() {
		if err := closeEngine(); err != nil {
			logger.Warn("close OCR engine", "error", err)
		}
	}()

	resultCache, closeCache, err := app.NewCache(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("result cache: %w", err)
	}
	defer func() { _ = closeCache() }()

	orch, err := pipeline.NewOrchestrator(app.PipelineConfig(cfg), pipeline.Deps{
		Jobs:       jobs,
		Results:    repo.NewExtractionResultRepository(db, logger),
		Dispatcher: dispatcher,
		Cache:      resultCache,
	}, logger)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	var (
		launcher async.Launcher
		worker   *asynq.Server
	)
	switch cfg.Jobs.QueueBackend {
	case "asynq":
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Cache.RedisAddr, Password: cfg.Cache.RedisPassword, DB: cfg.Cache.RedisDB}
		launcher = async.NewAsynqLauncher(redisOpt, logger)
		worker = async.NewServer(redisOpt, cfg.Jobs.MaxConcurrent, logger)
		if err := worker.Start(async.NewServeMux(async.NewExtractionHandler(orch, logger))); err != nil {
			return fmt.Errorf("start asynq worker: %w", err)
		}
	default:
		launcher = async.NewLocalLauncher(orch, logger, async.WithMaxConcurrent(cfg.Jobs.MaxConcurrent))
	}
	orch.SetLauncher(launcher)
	logger.Info("job launcher ready", "backend", cfg.Jobs.QueueBackend, "max_concurrent", cfg.Jobs.MaxConcurrent)

	grpcServer, hs := server.NewGRPCServer(server.NewExtractionService(orch, logger), cfg.Server.MaxUploadBytes, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC serving", "addr", lis.Addr().String())
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		hs.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		launcher.Shutdown(shutdownCtx)
		if worker != nil {
			worker.Shutdown()
		}
		return nil
	})
	return g.Wait()
}
