package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/relief-tracker/internal/entity"
	"github.com/joseph-ayodele/relief-tracker/internal/export"
)

func taxCmd() *cobra.Command {
	var recalc bool
	cmd := &cobra.Command{
		Use:   "tax <user> <year>",
		Short: "Show the tax relief summary for a user and year",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			year, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid year %q: %w", args[1], err)
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			get := a.Tax.Get
			if recalc {
				get = a.Tax.Calculate
			}
			sum, err := get(ctx, args[0], year)
			if err != nil {
				return err
			}
			return printJSON(sum)
		},
	}
	cmd.Flags().BoolVar(&recalc, "recalculate", false, "recompute instead of reading the stored summary")
	return cmd
}

func insightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights <user> <YYYY-MM>",
		Short: "Generate monthly insights for one user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			month, err := entity.ParseMonth(args[1])
			if err != nil {
				return err
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			doc, err := a.Insights.Generate(ctx, args[0], month)
			if err != nil {
				return err
			}
			if doc == nil {
				fmt.Fprintf(os.Stderr, "no receipts for %s\n", entity.InsightsKey(args[0], month))
				return nil
			}
			return printJSON(doc)
		},
	}
}

func insightsAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights-all <YYYY-MM>",
		Short: "Generate monthly insights for every user",
		Long:  `Runs the monthly batch. One user's failure is reported and does not stop the others.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			month, err := entity.ParseMonth(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.Batch.Run(ctx, month)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		format string
		year   int
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export <user>",
		Short: "Export processed receipts as XLSX or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			var w export.Window
			if year != 0 {
				w = export.YearWindow(year)
			}
			var data []byte
			ext := strings.ToLower(format)
			switch ext {
			case "xlsx", "excel":
				ext = "xlsx"
				data, err = a.Export.ExportReceiptsXLSX(ctx, args[0], w)
			case "csv":
				data, err = a.Export.ExportReceiptsCSV(ctx, args[0], w)
			default:
				return fmt.Errorf("unknown format %q (want xlsx or csv)", format)
			}
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("receipts_%s.%s", args[0], ext)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			logger.Info("export written", "path", out, "bytes", len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx or csv")
	cmd.Flags().IntVar(&year, "year", 0, "limit to one calendar year")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default receipts_<user>.<format>)")
	return cmd
}
