package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/relief-tracker/internal/export"
)

func ingestCmd() *cobra.Command {
	var (
		userID    string
		process   bool
		out       string
		keepDotfs bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Ingest every receipt file under a directory",
		Long: `Walk a directory, store each pdf, image or text receipt for the user and
create it pending. With --process (the default) each new receipt is run
through the pipeline immediately. With --out an XLSX export is written when
the run finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			logger.Info("starting ingestion", "dir", args[0], "user_id", userID)
			results, stats, err := a.Ingest.Directory(ctx, userID, args[0], !keepDotfs)
			if err != nil {
				return fmt.Errorf("ingest directory: %w", err)
			}

			processed, failures := 0, 0
			if process {
				for _, r := range results {
					if r.Err != "" || r.Deduplicated {
						continue
					}
					id, err := uuid.Parse(r.ReceiptID)
					if err != nil {
						continue
					}
					if _, err := a.Processor.ProcessReceipt(ctx, id, false); err != nil {
						logger.Error("failed to process receipt", "receipt_id", id, "path", r.SourcePath, "error", err)
						failures++
						continue
					}
					processed++
				}
			}

			if out != "" {
				if out == "-" {
					out = filepath.Join(filepath.Dir(filepath.Clean(args[0])), "receipts.xlsx")
				}
				data, err := a.Export.ExportReceiptsXLSX(ctx, userID, export.Window{})
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}

			logger.Info("batch processing complete",
				"scanned", stats.Scanned,
				"matched", stats.Matched,
				"succeeded", stats.Succeeded,
				"deduplicated", stats.Deduplicated,
				"failed", stats.Failed,
				"processed", processed,
				"process_failures", failures,
				"output_file", out,
			)
			return printJSON(map[string]any{
				"stats":            stats,
				"results":          results,
				"processed":        processed,
				"process_failures": failures,
				"output":           out,
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the ingested receipts (required)")
	cmd.Flags().BoolVar(&process, "process", true, "run the pipeline on each new receipt")
	cmd.Flags().StringVar(&out, "out", "", "write an XLSX export here when done (\"-\" for <dir>/../receipts.xlsx)")
	cmd.Flags().BoolVar(&keepDotfs, "include-hidden", false, "also ingest hidden files and directories")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func processCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "process <receipt-id>",
		Short: "Run one receipt through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("receipt id must be a UUID: %w", err)
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			rec, err := a.Processor.ProcessReceipt(ctx, id, force)
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reprocess even if already processed or failed")
	return cmd
}
