package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show an operational metrics snapshot",
	Long:  "Aggregates scan outcomes, finding counts, and suppression state over the configured lookback window.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "findings")
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		lookback, _ := cmd.Flags().GetInt("lookback-hours")
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackWindowHours
		}

		snap, err := env.Collector.Collect(ctx, lookback)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		formatStatus(os.Stdout, snap)
		return nil
	},
}

func formatStatus(out io.Writer, snap *monitoring.MetricsSnapshot) {
	fmt.Fprintf(out, "Window: last %dh (collected %s)\n\n", snap.LookbackHours, snap.CollectedAt.Format("2006-01-02 15:04:05"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Scans\ttotal %d\tcompleted %d\tpartial %d\tfailed %d\trunning %d\n",
		snap.ScansTotal, snap.ScansCompleted, snap.ScansPartial, snap.ScansFailed, snap.ScansRunning)
	_, _ = fmt.Fprintf(w, "\tfailure rate %.1f%%\tchecker failures %d\n",
		snap.ScanFailRate*100, snap.CheckerFailures)
	_, _ = fmt.Fprintf(w, "Findings\tpending %d\tconfirmed %d\trejected %d\tsuperseded %d\tarchived %d\tsuppressed %d\n",
		snap.FindingsPending, snap.FindingsConfirmed, snap.FindingsRejected,
		snap.FindingsSuperseded, snap.FindingsArchived, snap.FindingsSuppressed)
	_, _ = fmt.Fprintf(w, "Patterns\ttotal %d\tsuppressions active %d\n",
		snap.PatternsTotal, snap.ActiveSuppressions)
	_ = w.Flush()

	if len(snap.BySeverity) > 0 {
		severities := make([]string, 0, len(snap.BySeverity))
		for sev := range snap.BySeverity {
			severities = append(severities, string(sev))
		}
		sort.Strings(severities)
		fmt.Fprintln(out, "\nBy severity:")
		for _, sev := range severities {
			fmt.Fprintf(out, "  %-10s %d\n", sev, snap.BySeverity[model.Severity(sev)])
		}
	}
}

func init() {
	statusCmd.Flags().Int("lookback-hours", 0, "metrics window in hours (default from config)")
	rootCmd.AddCommand(statusCmd)
}
