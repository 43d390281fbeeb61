package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadpilot/internal/engine"
	"leadpilot/internal/lead"
)

var (
	runLeadFile string
	runLeadID   string
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one lead through the campaign workflow",
	Long: `Runs a single lead through detection, planning, the generate/review/gate
loop, and routing. The lead comes from a JSON file (--lead-file) or is
fetched from the CRM by id (--lead-id).

Examples:
  leadpilot run --lead-file lead.json
  leadpilot run --lead-id L-1042 --verbose
  leadpilot run --lead-file lead.json --dry-run --json`,
	RunE: runLead,
}

func init() {
	runCmd.Flags().StringVarP(&runLeadFile, "lead-file", "f", "", "path to a lead JSON file")
	runCmd.Flags().StringVarP(&runLeadID, "lead-id", "l", "", "lead id to fetch from the CRM")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the final run state as JSON")
}

func runLead(cmd *cobra.Command, args []string) error {
	if (runLeadFile == "") == (runLeadID == "") {
		return fmt.Errorf("exactly one of --lead-file or --lead-id is required")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lc lead.Context
	if runLeadFile != "" {
		lc, err = loadLeadFile(runLeadFile)
	} else {
		if a.crm == nil {
			return fmt.Errorf("--lead-id requires a configured CRM base URL")
		}
		lc, err = a.crm.ReadLead(ctx, runLeadID)
	}
	if err != nil {
		return err
	}

	logger.Info("Running lead", zap.String("lead", lc.ID), zap.String("company", lc.Company))
	rs, err := a.engine.Run(ctx, lc)
	if err != nil {
		logger.Error("Run completed with store errors", zap.Error(err))
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	}

	printRunSummary(rs)
	return nil
}

func printRunSummary(rs *engine.RunState) {
	fmt.Printf("Run %s  lead=%s  status=%s\n", rs.RunID, rs.Lead.ID, rs.Status)
	fmt.Printf("  plan: sequence=%s angle=%s tone=%s\n", rs.Plan.Sequence, rs.Plan.Angle, rs.Plan.Tone)
	for _, sr := range rs.StepResults {
		mark := "✗"
		if sr.Approved {
			mark = "✓"
		}
		fmt.Printf("  %s %-16s score=%.1f attempts=%d\n", mark, sr.Message.Step, sr.Overall, sr.Attempts)
	}
	if rs.Directive != nil {
		fmt.Printf("  routed via %s channel\n", rs.Directive.Channel)
	}
	if rs.Err != "" {
		fmt.Printf("  error: %s\n", rs.Err)
	}
	fmt.Println("\nDecision path:")
	for _, entry := range rs.DecisionPath {
		fmt.Printf("  - %s\n", entry)
	}
}
