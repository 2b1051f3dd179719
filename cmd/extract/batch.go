package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/app"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/entity"
	"github.com/joseph-ayodele/doc-extractor/internal/export"
	"github.com/joseph-ayodele/doc-extractor/internal/extract"
	"github.com/joseph-ayodele/doc-extractor/internal/ingest"
	"github.com/joseph-ayodele/doc-extractor/internal/pipeline"
)

type batchOptions struct {
	method        string
	out           string
	includeHidden bool
	quiet         bool
}

func newBatchCmd() *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Extract every supported file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.method, "method", constants.RequestAuto, "requested method: auto, ocr or text")
	cmd.Flags().StringVar(&opts.out, "out", "", "write an XLSX report to this path")
	cmd.Flags().BoolVar(&opts.includeHidden, "include-hidden", false, "descend into hidden files and directories")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", true, "do not print per-file progress")
	return cmd
}

func runBatch(ctx context.Context, dir string, opts *batchOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, stderr)

	orch, cleanup, err := newLocalPipeline(ctx, cfg, logger, opts.quiet, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	var rows []export.Row
	_, stats, err := ingest.WalkDirectory(ctx, dir, !opts.includeHidden, func(ctx context.Context, path string) error {
		res, err := extractPath(ctx, orch, dir, path, opts.method)
		rows = append(rows, export.Row{Path: path, Result: res, Err: err})
		if err != nil {
			_, _ = fmt.Fprintf(stdout, "FAIL %s: %v\n", path, err)
			return err
		}
		_, _ = fmt.Fprintf(stdout, "ok   %s [method=%s confidence=%.2f chars=%d]\n", path, res.Method, res.Confidence, len([]rune(res.Text)))
		return nil
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "\nscanned=%d matched=%d succeeded=%d failed=%d\n", stats.Scanned, stats.Matched, stats.Succeeded, stats.Failed)

	if opts.out != "" {
		b, err := export.ReportXLSX(rows, logger)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.out, b, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "report written to %s\n", opts.out)
	}
	return nil
}

// extractPath opens path and extracts it under a subject derived from its place in root.
func extractPath(ctx context.Context, orch *pipeline.Orchestrator, root, path, method string) (*entity.ExtractionResult, error) {
	f, err := extract.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	mimeType := constants.MIMEFromExt(filepath.Ext(path))
	return extractOne(ctx, orch, f, mimeType, "cli:"+filepath.ToSlash(rel), method)
}
