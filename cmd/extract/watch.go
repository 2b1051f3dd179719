package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/app"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/ingest"
)

type watchOptions struct {
	method        string
	outDir        string
	debounce      time.Duration
	initialScan   bool
	includeHidden bool
}

func newWatchCmd() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch DIR...",
		Short: "Extract files as they appear under one or more directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.method, "method", constants.RequestAuto, "requested method: auto, ocr or text")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "write <name>.txt files here instead of printing the text")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is extracted")
	cmd.Flags().BoolVar(&opts.initialScan, "initial-scan", false, "also extract files already present")
	cmd.Flags().BoolVar(&opts.includeHidden, "include-hidden", false, "watch hidden files and directories")
	return cmd
}

func runWatch(ctx context.Context, roots []string, opts *watchOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, stderr)

	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return err
		}
	}

	orch, cleanup, err := newLocalPipeline(ctx, cfg, logger, true, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: opts.initialScan,
		Debounce:    opts.debounce,
		SkipHidden:  !opts.includeHidden,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("watching for files", "roots", roots, "debounce", opts.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok {
				logger.Warn("watch error", "error", err)
			}
		case path, ok := <-events:
			if !ok {
				return nil
			}
			res, err := extractPath(ctx, orch, filepath.Dir(path), path, opts.method)
			if err != nil {
				logger.Error("extraction failed", "path", path, "error", err)
				continue
			}
			if opts.outDir == "" {
				_, _ = fmt.Fprintf(stdout, "==> %s <==\n", path)
				_ = printResult(stdout, res, false)
				continue
			}
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".txt"
			if err := os.WriteFile(filepath.Join(opts.outDir, name), []byte(res.Text), 0o644); err != nil {
				logger.Error("write text failed", "path", path, "error", err)
				continue
			}
			logger.Info("extracted", "path", path, "method", res.Method, "confidence", res.Confidence)
		}
	}
}
