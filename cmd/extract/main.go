package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "extract",
		Short:        "Extract text from documents and images",
		SilenceUsage: true,
	}
	root.AddCommand(newFileCmd(), newBatchCmd(), newWatchCmd(), newRemoteCmd())
	return root
}
