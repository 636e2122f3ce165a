package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/profilescout/profilescout/internal/config"
	"github.com/profilescout/profilescout/internal/reports"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect archived performance reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openReportStore()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No archived reports yet.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %d calls\n", e.ID, e.GeneratedAt.Format("2006-01-02 15:04:05"), e.TotalCalls)
		}
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Print one archived report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openReportStore()
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := store.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Report %s (generated %s)\n\n", report.ID, report.GeneratedAt.Format("2006-01-02 15:04:05"))
		ops := make([]string, 0, len(report.PerOperationStats))
		for op := range report.PerOperationStats {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			st := report.PerOperationStats[op]
			fmt.Printf("  %-30s %5d calls  avg %.3fs  total %.3fs\n", op, st.Calls, st.AvgSeconds, st.TotalSeconds)
		}
		fmt.Printf("\nTotal: %d calls, %.3fs\n", report.Summary.TotalCalls, report.Summary.TotalDurationSeconds)
		if report.Summary.SlowestOperation != "" {
			fmt.Printf("Slowest: %s, fastest: %s\n", report.Summary.SlowestOperation, report.Summary.FastestOperation)
		}
		for _, rec := range report.Recommendations {
			fmt.Printf("\n[%s] %s: %s\n", rec.Operation, rec.Issue, rec.Recommendation)
		}
		return nil
	},
}

var reportDiffCmd = &cobra.Command{
	Use:   "diff <base-report-id> <current-report-id>",
	Short: "Compare two archived reports operation by operation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openReportStore()
		if err != nil {
			return err
		}
		defer store.Close()

		base, err := store.Load(args[0])
		if err != nil {
			return err
		}
		current, err := store.Load(args[1])
		if err != nil {
			return err
		}

		for _, d := range reports.Diff(base, current) {
			switch {
			case d.New:
				fmt.Printf("  %-30s new operation, avg %.3fs over %d calls\n", d.Operation, d.CurrentAvg, d.CurrentCalls)
			case d.Disappeared:
				fmt.Printf("  %-30s no longer called\n", d.Operation)
			default:
				fmt.Printf("  %-30s avg %.3fs -> %.3fs (%+.1f%%)\n", d.Operation, d.BaseAvg, d.CurrentAvg, d.AvgChangePct)
			}
		}
		return nil
	},
}

func openReportStore() (*reports.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return reports.Open(filepath.Join(cfg.DataDir, "reports.db"))
}

func init() {
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportDiffCmd)
	rootCmd.AddCommand(reportCmd)
}
