package cmd

import (
	"github.com/spf13/cobra"

	"github.com/suprsokr/sidekick/internal/patcher"
)

// NewCrcCommand creates the crc command.
func NewCrcCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crc <file>...",
		Short: "Print CRC-32 fingerprints in the form patch.json expects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sums := make([]fileSum, 0, len(args))
			for _, path := range args {
				fp, err := patcher.FileFingerprint(path)
				if err != nil {
					return wrapExitError(ExitCommandError, "fingerprint", err)
				}
				sums = append(sums, fileSum{Path: path, CRC32: fp.String()})
			}
			if err := renderSums(cmd.OutOrStdout(), rootOpts.Format, sums); err != nil {
				return wrapExitError(ExitCommandError, "render", err)
			}
			return nil
		},
	}
}

type fileSum struct {
	Path  string `json:"path"`
	CRC32 string `json:"crc32"`
}
