package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aegis/internal/export"
	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/store"
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Inspect and export findings",
	Long:  "Commands for listing, viewing, and exporting findings. The default list shows pending, unsuppressed findings only.",
}

// -- findings list --

var findingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List findings",
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

		filter, err := findingFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		findings, err := env.Store.ListFindings(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "findings list")
		}

		if len(findings) == 0 {
			fmt.Fprintln(os.Stderr, "No findings found.")
			return nil
		}

		formatFindingsList(os.Stdout, findings)
		return nil
	},
}

// -- findings show --

var findingsShowCmd = &cobra.Command{
	Use:   "show <finding-id>",
	Short: "Show a finding with its event history",
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

		finding, err := env.Store.GetFinding(ctx, args[0])
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return eris.Errorf("finding %s not found", args[0])
			}
			return eris.Wrap(err, "findings show")
		}
		events, err := env.Store.ListFindingEvents(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "findings show")
		}

		out := struct {
			Finding *model.Finding       `json:"finding"`
			Events  []model.FindingEvent `json:"events"`
		}{finding, events}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// -- findings export --

var findingsExportOut string

var findingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export findings to an xlsx workbook",
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

		filter, err := findingFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		filter.AllStatuses = true
		filter.IncludeSuppressed = true

		findings, err := env.Store.ListFindings(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "findings export")
		}

		if err := export.WriteFindingsXLSX(findingsExportOut, findings); err != nil {
			return eris.Wrap(err, "findings export")
		}

		fmt.Printf("Wrote %d findings to %s\n", len(findings), findingsExportOut)
		return nil
	},
}

func findingFilterFromFlags(cmd *cobra.Command) (store.FindingFilter, error) {
	document, _ := cmd.Flags().GetString("document")
	unit, _ := cmd.Flags().GetString("unit")
	checkerID, _ := cmd.Flags().GetString("checker")
	status, _ := cmd.Flags().GetString("status")
	all, _ := cmd.Flags().GetBool("all")
	includeSuppressed, _ := cmd.Flags().GetBool("include-suppressed")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := store.FindingFilter{
		DocumentID:        document,
		UnitID:            unit,
		CheckerID:         checkerID,
		AllStatuses:       all,
		IncludeSuppressed: includeSuppressed,
		Limit:             limit,
	}
	if status != "" {
		fs := model.FindingStatus(status)
		switch fs {
		case model.FindingPending, model.FindingConfirmed, model.FindingRejected, model.FindingSuperseded, model.FindingArchived:
			filter.Statuses = []model.FindingStatus{fs}
		default:
			return filter, eris.Errorf("unknown finding status %q", status)
		}
	}
	return filter, nil
}

// formatFindingsList writes a tabular list of findings to w.
func formatFindingsList(out io.Writer, findings []model.Finding) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOCUMENT\tUNIT\tCHECKER\tSEVERITY\tSTATUS\tMESSAGE")
	_, _ = fmt.Fprintln(w, "--\t--------\t----\t-------\t--------\t------\t-------")

	for _, f := range findings {
		msg := f.Message
		if len(msg) > 72 {
			msg = msg[:69] + "..."
		}
		status := string(f.Status)
		if f.AutoSuppressed {
			status += " (suppressed)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.DocumentID, f.UnitID, f.CheckerID, f.Severity, status, msg)
	}
	_ = w.Flush()
}

func addFindingFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("document", "", "filter by document ID")
	cmd.Flags().String("unit", "", "filter by unit ID")
	cmd.Flags().String("checker", "", "filter by checker ID")
	cmd.Flags().String("status", "", "filter by status (pending, confirmed, rejected, superseded, archived)")
	cmd.Flags().Bool("all", false, "include findings in every status, not just pending")
	cmd.Flags().Bool("include-suppressed", false, "include auto-suppressed findings")
	cmd.Flags().Int("limit", 100, "max number of findings")
}

func init() {
	addFindingFilterFlags(findingsListCmd)
	addFindingFilterFlags(findingsExportCmd)
	findingsExportCmd.Flags().StringVar(&findingsExportOut, "out", "findings.xlsx", "output workbook path")

	findingsCmd.AddCommand(findingsListCmd)
	findingsCmd.AddCommand(findingsShowCmd)
	findingsCmd.AddCommand(findingsExportCmd)
	rootCmd.AddCommand(findingsCmd)
}
