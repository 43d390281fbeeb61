// leadpilot turns raw sales-lead records into quality-gated outreach
// campaigns and routes the results to an email queue or a manual-delivery
// bucket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"leadpilot/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	dryRun     bool

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "leadpilot",
	Short: "leadpilot - quality-gated outreach campaign engine",
	Long: `leadpilot runs sales leads through an orchestrated campaign workflow:

  1. Detect: derive confidence-scored traits from company signals
  2. Plan: map traits and lead history to a message sequence and angle
  3. Generate: draft each step through the text-generation service
  4. Review: score drafts on five weighted quality dimensions
  5. Gate: approve, retry, or escalate each draft
  6. Route: hand approved campaigns to the email queue or the CRM

Escalated runs are surfaced for human review; every run leaves a full
execution trace.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, _ = os.Getwd()
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("Category logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config YAML")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: cwd)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "use the stub generation client and skip delivery")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(traceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
