package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suprsokr/sidekick/internal/patcher"
)

type restoreOptions struct {
	all bool
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &restoreOptions{}

	cmd := &cobra.Command{
		Use:   "restore [target...]",
		Short: "Copy <target>.backup back over the target",
		Long: `Restore puts a target back to the pristine copy taken before it was
first modified. The backup itself is kept, so a later apply sees the target
as untouched and modifies it again.

Targets may be absolute paths or paths relative to a search root. With --all,
every patch catalog target that has a backup is restored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.all && len(args) == 0 {
				return newExitError(ExitCommandError, "restore needs a target or --all")
			}
			return runRestore(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "restore every patch catalog target that has a backup")
	return cmd
}

func runRestore(cmd *cobra.Command, rootOpts *RootOptions, opts *restoreOptions, args []string) error {
	e, err := setup(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	o := e.orchestrator()
	var targets []string
	for _, arg := range args {
		if p, ok := o.Resolve(arg); ok {
			targets = append(targets, p)
		} else {
			targets = append(targets, filepath.Clean(arg))
		}
	}
	if opts.all {
		for _, p := range e.loadPatches() {
			if t, ok := o.Resolve(p.Target); ok && patcher.HasBackup(t) {
				targets = append(targets, t)
			}
		}
	}

	if opts.all {
		e.out.printStep(fmt.Sprintf("Restoring %d backed-up target%s", len(targets), plural(len(targets), "", "s")))
	}

	failed := 0
	seen := make(map[string]bool)
	for _, t := range targets {
		if seen[t] {
			continue
		}
		seen[t] = true

		if err := patcher.Restore(t); err != nil {
			failed++
			if errors.Is(err, fs.ErrNotExist) {
				e.out.printWarning(fmt.Sprintf("%s: no backup", t))
			} else {
				e.out.printWarning(fmt.Sprintf("%s: %v", t, err))
			}
			e.log.Warn("restore failed", zap.String("target", t), zap.Error(err))
			continue
		}
		e.log.Info("restored", zap.String("target", t))
		e.out.printSuccess("Restored " + t)
	}

	if len(seen) == 0 {
		e.out.printInfo("Nothing to restore")
	}
	if failed > 0 {
		return newExitError(ExitFailure, fmt.Sprintf("%d restore%s failed", failed, plural(failed, "", "s")))
	}
	return nil
}
