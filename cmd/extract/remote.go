package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/server"
)

func newRemoteCmd() *cobra.Command {
	var (
		addr, subject, mimeType, method string
		wait                            bool
		timeout                         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "remote PATH",
		Short: "Send a file to a running extractord",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if subject == "" {
				subject = "cli:" + filepath.Base(args[0])
			}
			if mimeType == "" {
				mimeType = constants.MIMEFromExt(filepath.Ext(args[0]))
			}
			req, err := structpb.NewStruct(map[string]any{
				"subject_id":       subject,
				"file_name":        filepath.Base(args[0]),
				"mime_type":        mimeType,
				"requested_method": method,
				"content":          base64.StdEncoding.EncodeToString(data),
				"wait":             wait,
			})
			if err != nil {
				return err
			}

			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer func() { _ = conn.Close() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			resp, err := server.NewExtractionClient(conn).ExtractFile(ctx, req,
				grpc.MaxCallSendMsgSize(len(data)+(1<<20)))
			if err != nil {
				return err
			}
			out, err := protojson.MarshalOptions{Multiline: true}.Marshal(resp)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "extractord gRPC address")
	cmd.Flags().StringVar(&subject, "subject", "", "subject id (default: cli:<file name>)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "declared media type (default: from the file extension)")
	cmd.Flags().StringVar(&method, "method", constants.RequestAuto, "requested method: auto, ocr or text")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the result instead of queueing the job")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "call timeout")
	return cmd
}
