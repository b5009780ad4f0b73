package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/store"
)

var adjudicateBy string

var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate <finding-id> <confirmed|rejected>",
	Short: "Record a reviewer decision on a pending finding",
	Long:  "Confirms or rejects a pending finding. The decision also feeds the matching decision pattern, which may activate or deactivate automatic suppression for similar findings.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		decision := model.Decision(args[1])
		if !decision.Valid() {
			return eris.Errorf("decision must be %q or %q, got %q",
				model.DecisionConfirmed, model.DecisionRejected, args[1])
		}

		env, err := initEnv(ctx, "adjudicate")
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		finding, err := env.Store.AdjudicateFinding(ctx, args[0], decision, adjudicateBy, cfg.Learner)
		if err != nil {
			switch {
			case eris.Is(err, store.ErrNotFound):
				return eris.Errorf("finding %s not found", args[0])
			case eris.Is(err, store.ErrNotPending):
				return eris.Errorf("finding %s has already been adjudicated or is no longer active", args[0])
			}
			return eris.Wrap(err, "adjudicate")
		}

		fmt.Printf("Finding %s %s by %s\n", finding.ID, finding.Status, adjudicateBy)

		pattern, err := env.Store.GetPattern(ctx, finding.CheckerID, finding.ContextSignature)
		if err != nil {
			return eris.Wrap(err, "adjudicate")
		}
		fmt.Printf("Pattern %s/%s: %d confirmed, %d rejected, suppression %s\n",
			pattern.CheckerID, pattern.ContextSignature,
			pattern.ConfirmCount, pattern.RejectCount,
			suppressionLabel(pattern.SuppressionActive))
		return nil
	},
}

func suppressionLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func init() {
	adjudicateCmd.Flags().StringVar(&adjudicateBy, "by", "", "reviewer identity recorded with the decision (required)")
	_ = adjudicateCmd.MarkFlagRequired("by")
	rootCmd.AddCommand(adjudicateCmd)
}
