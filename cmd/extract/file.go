package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/app"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/entity"
	"github.com/joseph-ayodele/doc-extractor/internal/extract"
	"github.com/joseph-ayodele/doc-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/doc-extractor/internal/repository"
)

type fileOptions struct {
	mimeType string
	method   string
	asJSON   bool
	quiet    bool
}

func newFileCmd() *cobra.Command {
	opts := &fileOptions{}
	cmd := &cobra.Command{
		Use:   "file PATH",
		Short: "Run the extraction pipeline on a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd.Context(), args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.mimeType, "mime", "", "declared media type (default: from the file extension)")
	cmd.Flags().StringVar(&opts.method, "method", constants.RequestAuto, "requested method: auto, ocr or text")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func runFile(ctx context.Context, path string, opts *fileOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, stderr)

	f, err := extract.OpenFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	mimeType := opts.mimeType
	if mimeType == "" {
		if constants.FormatFromExt(filepath.Ext(path)) == constants.FormatUnsupported {
			return fmt.Errorf("%w: cannot tell the type of %s, pass --mime", common.ErrUnsupportedFormat, path)
		}
		mimeType = constants.MIMEFromExt(filepath.Ext(path))
	}

	orch, cleanup, err := newLocalPipeline(ctx, cfg, logger, opts.quiet, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := extractOne(ctx, orch, f, mimeType, "cli:"+filepath.Base(path), opts.method)
	if err != nil {
		return err
	}
	return printResult(stdout, res, opts.asJSON)
}

// newLocalPipeline wires an orchestrator over a throwaway SQLite job store.
func newLocalPipeline(ctx context.Context, cfg *common.Config, logger *slog.Logger, quiet bool, stderr io.Writer) (*pipeline.Orchestrator, func(), error) {
	dir, err := os.MkdirTemp(cfg.Extraction.TempDir, "extract-cli-*")
	if err != nil {
		return nil, nil, err
	}
	dsn := "file:" + filepath.Join(dir, "jobs.db") + "?_pragma=foreign_keys(1)&_time_format=sqlite"
	db, err := repo.Open(ctx, repo.Config{DSN: dsn}, logger)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}
	dispatcher, closeEngine := app.NewDispatcher(cfg, logger)
	cleanup := func() {
		_ = closeEngine()
		db.Close(logger)
		_ = os.RemoveAll(dir)
	}
	if err := db.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	var jobs repo.ExtractJobRepository = repo.NewExtractJobRepository(db, logger)
	if !quiet {
		jobs = progressPrinter{ExtractJobRepository: jobs, w: stderr}
	}
	orch, err := pipeline.NewOrchestrator(app.PipelineConfig(cfg), pipeline.Deps{
		Jobs:       jobs,
		Results:    repo.NewExtractionResultRepository(db, logger),
		Dispatcher: dispatcher,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

// extractOne runs a file through a fresh job and returns its result.
func extractOne(ctx context.Context, orch *pipeline.Orchestrator, f extract.File, mimeType, subject, method string) (*entity.ExtractionResult, error) {
	job, err := orch.CreateJob(ctx, subject, method)
	if err != nil {
		return nil, err
	}
	res, err := orch.ExtractText(ctx, f, mimeType, subject, job.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.UserMessage(err), err)
	}
	return res, nil
}

func printResult(w io.Writer, res *entity.ExtractionResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintf(w, "%s\n\n[method=%s confidence=%.2f language=%s duration=%dms]\n",
		res.Text, res.Method, res.Confidence, res.Language, res.ProcessingDurationMs)
	return err
}

// progressPrinter echoes persisted progress to the terminal.
type progressPrinter struct {
	repo.ExtractJobRepository
	w io.Writer
}

func (p progressPrinter) UpdateProgress(ctx context.Context, id uuid.UUID, percent int, message string) error {
	_, _ = fmt.Fprintf(p.w, "[%3d%%] %s\n", percent, message)
	return p.ExtractJobRepository.UpdateProgress(ctx, id, percent, message)
}
