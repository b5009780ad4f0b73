package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aegis/internal/ingest"
	"github.com/sells-group/aegis/internal/model"
)

var (
	scanDocID   string
	scanTitle   string
	scanVersion string
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Scan a document and record findings",
	Long:  "Loads a document file, diffs it against the last recorded snapshot, runs the enabled checkers over added and changed units, and commits the resulting findings.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "scan")
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		doc, err := ingest.LoadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "scan")
		}
		if scanDocID != "" {
			doc.ID = scanDocID
		}
		if scanTitle != "" {
			doc.Title = scanTitle
		}
		doc.Version = scanVersion

		scan, err := env.Scheduler.RunSync(ctx, doc)
		if err != nil {
			return eris.Wrap(err, "scan")
		}

		printScanResult(scan)
		return nil
	},
}

func printScanResult(scan *model.Scan) {
	s := scan.Stats
	fmt.Printf("Scan %s: %s\n", scan.ID, scan.Status)
	fmt.Printf("  units: %d total, %d added, %d changed, %d unchanged, %d removed\n",
		s.UnitsTotal, s.UnitsAdded, s.UnitsChanged, s.UnitsUnchanged, s.UnitsRemoved)
	fmt.Printf("  findings: %d new (%d suppressed), %d superseded, %d archived\n",
		s.FindingsNew, s.Suppressed, s.Superseded, s.Archived)
	if scan.Status == model.ScanPartial {
		fmt.Printf("  processed %d of %d changed units before the budget expired; unprocessed units will be re-examined next scan\n",
			s.UnitsProcessed, s.UnitsAdded+s.UnitsChanged)
	}
	for _, d := range scan.Diagnostics {
		fmt.Fprintf(os.Stderr, "  checker %s failed on unit %s: %s\n", d.CheckerID, d.UnitID, d.Error)
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanDocID, "document", "", "document ID (default derived from the file name)")
	scanCmd.Flags().StringVar(&scanTitle, "title", "", "document title override")
	scanCmd.Flags().StringVar(&scanVersion, "version", "", "document version label")
	rootCmd.AddCommand(scanCmd)
}
