package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aegis/internal/model"
)

var patternsActiveOnly bool

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List learned decision patterns",
	Long:  "Shows the per-checker decision patterns built from reviewer adjudications, with their confirm/reject counts and suppression state.",
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

		limit, _ := cmd.Flags().GetInt("limit")
		patterns, err := env.Store.ListPatterns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "patterns")
		}

		if patternsActiveOnly {
			kept := patterns[:0]
			for _, p := range patterns {
				if p.SuppressionActive {
					kept = append(kept, p)
				}
			}
			patterns = kept
		}

		if len(patterns) == 0 {
			fmt.Fprintln(os.Stderr, "No patterns found.")
			return nil
		}

		formatPatternsList(os.Stdout, patterns)
		return nil
	},
}

func formatPatternsList(out io.Writer, patterns []model.DecisionPattern) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHECKER\tSIGNATURE\tCONFIRMED\tREJECTED\tSCORE\tSUPPRESSION")
	_, _ = fmt.Fprintln(w, "-------\t---------\t---------\t--------\t-----\t-----------")

	for _, p := range patterns {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%s\n",
			p.CheckerID, p.ContextSignature,
			p.ConfirmCount, p.RejectCount,
			cfg.Learner.Score(p.ConfirmCount, p.RejectCount),
			suppressionLabel(p.SuppressionActive))
	}
	_ = w.Flush()
}

func init() {
	patternsCmd.Flags().Int("limit", 100, "max number of patterns")
	patternsCmd.Flags().BoolVar(&patternsActiveOnly, "active", false, "show only patterns with suppression active")
	rootCmd.AddCommand(patternsCmd)
}
