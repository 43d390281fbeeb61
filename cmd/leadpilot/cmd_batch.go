package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadpilot/internal/engine"
)

var batchLeadsFile string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a batch of leads concurrently",
	Long: `Runs every lead in a JSON array file through the campaign workflow,
bounded by the configured max_concurrent_runs.

Example:
  leadpilot batch --leads-file leads.json`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchLeadsFile, "leads-file", "f", "", "path to a JSON array of leads")
	batchCmd.MarkFlagRequired("leads-file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	leads, err := loadLeadsFile(batchLeadsFile)
	if err != nil {
		return err
	}
	if len(leads) == 0 {
		return fmt.Errorf("no leads in %s", batchLeadsFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting batch", zap.Int("leads", len(leads)),
		zap.Int("max_concurrent", a.cfg.Engine.MaxConcurrentRuns))
	results := a.engine.RunBatch(ctx, leads)

	var approved, escalated, failed int
	for _, r := range results {
		status := "failed"
		runID := "-"
		if r.State != nil {
			status = string(r.State.Status)
			runID = r.State.RunID
		}
		switch {
		case r.State != nil && r.State.Status == engine.StatusApproved:
			approved++
		case r.State != nil && r.State.Status == engine.StatusEscalated:
			escalated++
		default:
			failed++
		}
		fmt.Printf("%-20s %-10s run=%s\n", r.Lead.ID, status, runID)
		if r.Err != nil {
			fmt.Printf("  error: %v\n", r.Err)
		}
	}

	fmt.Printf("\n%d leads: %d approved, %d escalated, %d failed\n",
		len(results), approved, escalated, failed)
	return nil
}
