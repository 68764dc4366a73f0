package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/suprsokr/sidekick/internal/ledger"
)

type historyOptions struct {
	limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded apply runs, or the outcomes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			if e.cfg.Ledger.Disabled {
				return newExitError(ExitCommandError, "the ledger is disabled in the config")
			}
			if err := e.cfg.EnsureDirs(); err != nil {
				return wrapExitError(ExitCommandError, "ledger", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			l, err := ledger.Open(ctx, e.cfg.Ledger)
			if err != nil {
				return wrapExitError(ExitCommandError, "ledger", err)
			}
			defer l.Close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				outcomes, err := l.Outcomes(ctx, args[0])
				if err != nil {
					return wrapExitError(ExitCommandError, "ledger", err)
				}
				if len(outcomes) == 0 {
					return newExitError(ExitCommandError, "no outcomes recorded for run "+args[0])
				}
				return renderOutcomes(w, rootOpts.Format, outcomes)
			}

			runs, err := l.Runs(ctx, opts.limit)
			if err != nil {
				return wrapExitError(ExitCommandError, "ledger", err)
			}
			if len(runs) == 0 && rootOpts.Format != "json" {
				e.out.printInfo("No runs recorded yet")
				return nil
			}
			return renderRuns(w, rootOpts.Format, runs)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "number of runs to show (0 for all)")
	return cmd
}
