package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	traceRunID  string
	traceLeadID string
	traceStatus string
	traceLimit  int
	traceJSON   bool
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect execution traces of past runs",
	Long: `Queries the append-only trace store.

Examples:
  leadpilot trace --run 2f1c...            # one run, full decision path
  leadpilot trace --lead L-1042            # all runs for a lead
  leadpilot trace --lead L-1042 --status escalated --limit 5`,
	RunE: showTraces,
}

func init() {
	traceCmd.Flags().StringVar(&traceRunID, "run", "", "run id to show")
	traceCmd.Flags().StringVar(&traceLeadID, "lead", "", "lead id to list runs for")
	traceCmd.Flags().StringVar(&traceStatus, "status", "", "filter by status (approved, escalated, failed)")
	traceCmd.Flags().IntVar(&traceLimit, "limit", 20, "max runs to list")
	traceCmd.Flags().BoolVar(&traceJSON, "json", false, "print full traces as JSON")
}

func showTraces(cmd *cobra.Command, args []string) error {
	if (traceRunID == "") == (traceLeadID == "") {
		return fmt.Errorf("exactly one of --run or --lead is required")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if traceRunID != "" {
		tr, err := a.traces.Get(traceRunID)
		if err != nil {
			return err
		}
		if traceJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tr)
		}
		fmt.Printf("Run %s  lead=%s  status=%s\n", tr.RunID, tr.LeadID, tr.Status)
		fmt.Printf("  started:  %s\n", tr.StartedAt.Local())
		fmt.Printf("  finished: %s\n", tr.FinishedAt.Local())
		fmt.Println("\nDecision path:")
		for _, entry := range tr.DecisionPath {
			fmt.Printf("  - %s\n", entry)
		}
		return nil
	}

	traces, err := a.traces.List(traceLeadID, traceStatus, traceLimit)
	if err != nil {
		return err
	}
	if len(traces) == 0 {
		fmt.Println("No traces found.")
		return nil
	}
	if traceJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(traces)
	}
	for _, tr := range traces {
		fmt.Printf("%s  %-10s  %s\n", tr.FinishedAt.Local().Format("2006-01-02 15:04:05"), tr.Status, tr.RunID)
	}
	return nil
}
