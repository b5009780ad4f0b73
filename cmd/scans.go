package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/store"
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Inspect scan history",
	Long:  "Commands for listing and viewing recorded scans.",
}

// -- scans list --

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent scans",
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

		document, _ := cmd.Flags().GetString("document")
		limit, _ := cmd.Flags().GetInt("limit")

		scans, err := env.Store.ListScans(ctx, document, limit)
		if err != nil {
			return eris.Wrap(err, "scans list")
		}

		if len(scans) == 0 {
			fmt.Fprintln(os.Stderr, "No scans found.")
			return nil
		}

		formatScansList(os.Stdout, scans)
		return nil
	},
}

// -- scans show --

var scansShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show full details of a scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "findings")
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		scan, err := env.Store.GetScan(ctx, args[0])
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return eris.Errorf("scan %s not found", args[0])
			}
			return eris.Wrap(err, "scans show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scan)
	},
}

func formatScansList(out io.Writer, scans []model.Scan) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOCUMENT\tSTATUS\tNEW\tSUPPRESSED\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t--------\t------\t---\t----------\t-------\t--------")

	for _, s := range scans {
		dur := "-"
		if s.FinishedAt != nil {
			dur = s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID, s.DocumentID, s.Status,
			s.Stats.FindingsNew, s.Stats.Suppressed,
			s.StartedAt.Format(time.RFC3339), dur)
	}
	_ = w.Flush()
}

func init() {
	scansListCmd.Flags().String("document", "", "filter by document ID (default all documents)")
	scansListCmd.Flags().Int("limit", 50, "max number of scans")

	scansCmd.AddCommand(scansListCmd)
	scansCmd.AddCommand(scansShowCmd)
	rootCmd.AddCommand(scansCmd)
}
