package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/relief-tracker/internal/app"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
)

var (
	inmem      bool
	sqlitePath string
	logLevel   string
	logFormat  string

	logger  *slog.Logger
	rootCmd = &cobra.Command{
		Use:   "receipt-batch",
		Short: "Batch tools for the tax-relief receipt pipeline",
		Long: `receipt-batch ingests receipt files, runs them through extraction,
classification and anomaly detection, and produces tax summaries, monthly
insights and spreadsheet exports.

With --inmem the database lives only for the duration of one command.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&inmem, "inmem", false, "use a private in-memory SQLite database")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "use the SQLite database at this path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.MarkFlagsMutuallyExclusive("inmem", "sqlite")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(taxCmd())
	rootCmd.AddCommand(insightsCmd())
	rootCmd.AddCommand(insightsAllCmd())
	rootCmd.AddCommand(exportCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logger = common.NewLogger(os.Stderr, logFormat, logLevel)
	slog.SetDefault(logger)
	return nil
}

// openApp builds the service graph. Commands process synchronously, so the
// queue is never started.
func openApp(ctx context.Context) (*app.App, error) {
	cfg := common.LoadConfig()
	local := inmem || sqlitePath != ""
	if !local {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return app.Build(ctx, cfg, app.Options{InMem: inmem, SQLitePath: sqlitePath}, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
