package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suprsokr/sidekick/internal/catalog"
	"github.com/suprsokr/sidekick/internal/ledger"
	"github.com/suprsokr/sidekick/internal/orchestrator"
)

type applyOptions struct {
	noLedger     bool
	skipPatches  bool
	skipReplaces bool
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply every patch catalog and replacement catalog",
		Long: `Apply walks the patches directory for patch.json catalogs, then runs
the configured replacement catalogs. Every entry is classified as applied,
already-applied, skipped or failed; one failure never stops the run.

Exit status is 1 when any entry failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noLedger, "no-ledger", false, "do not record this run in the history ledger")
	cmd.Flags().BoolVar(&opts.skipPatches, "skip-patches", false, "only run replacement catalogs")
	cmd.Flags().BoolVar(&opts.skipReplaces, "skip-replacements", false, "only run patch catalogs")

	return cmd
}

func runApply(cmd *cobra.Command, rootOpts *RootOptions, opts *applyOptions) error {
	e, err := setup(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	var entries []catalog.Entry
	if !opts.skipPatches {
		for _, p := range e.loadPatches() {
			entries = append(entries, p)
		}
	}
	if !opts.skipReplaces {
		reps, err := e.loadReplacements()
		if err != nil {
			return err
		}
		for _, r := range reps {
			entries = append(entries, r)
		}
	}
	if len(entries) == 0 {
		e.out.printInfo("Nothing to apply")
		if rootOpts.Format == "json" {
			empty := &orchestrator.Report{Outcomes: []orchestrator.Outcome{}}
			if err := writeJSON(cmd.OutOrStdout(), empty); err != nil {
				return wrapExitError(ExitCommandError, "render report", err)
			}
		}
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rep := e.orchestrator().Run(ctx, entries)

	if !opts.noLedger && !e.cfg.Ledger.Disabled {
		e.record(ctx, rep)
	}

	if err := renderReport(cmd.OutOrStdout(), rootOpts.Format, rep); err != nil {
		return wrapExitError(ExitCommandError, "render report", err)
	}
	if rep.Failed() {
		n := rep.Counts()[orchestrator.StatusFailed]
		return newExitError(ExitFailure, fmt.Sprintf("%d entr%s failed", n, plural(n, "y", "ies")))
	}
	return nil
}

// record appends rep to the ledger. Ledger trouble never changes the run's
// outcome; it is only logged.
func (e *env) record(ctx context.Context, rep *orchestrator.Report) {
	if err := e.cfg.EnsureDirs(); err != nil {
		e.log.Warn("ledger unavailable", zap.Error(err))
		return
	}
	l, err := ledger.Open(ctx, e.cfg.Ledger)
	if err != nil {
		e.log.Warn("ledger unavailable", zap.Error(err))
		return
	}
	defer l.Close()
	if err := l.Record(ctx, rep); err != nil {
		e.log.Warn("could not record run", zap.String("run", rep.RunID), zap.Error(err))
		return
	}
	e.log.Debug("run recorded", zap.String("run", rep.RunID), zap.String("driver", l.Driver()))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
