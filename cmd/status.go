package cmd

import (
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of every patch catalog target without changing anything",
		Long: `Status resolves each patch.json entry against the search roots and
reports one of:

  pristine   no backup yet, target passes its declared precondition
  ready      backup present and the target still matches it
  applied    target carries the post-apply fingerprint
  drifted    target differs from its backup for no known reason
  mismatch   target fails its declared precondition
  missing    no search root holds the target`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			patches := e.loadPatches()
			if len(patches) == 0 {
				e.out.printInfo("No patch entries found in " + e.cfg.PatchesDir)
				return nil
			}
			statuses := e.orchestrator().Status(patches)
			if err := renderStatus(cmd.OutOrStdout(), rootOpts.Format, statuses); err != nil {
				return wrapExitError(ExitCommandError, "render status", err)
			}
			return nil
		},
	}
}
