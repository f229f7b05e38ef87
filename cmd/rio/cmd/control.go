package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

// imageCommand builds a command that performs one image control operation.
func imageCommand(use, short, done string, op func(*rio.Session) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := openSession()
			if err != nil {
				return err
			}
			defer cleanup()
			if err := op(s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s on %s\n", done, s.Bitfile(), s.Target())
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(
		imageCommand("run", "Start the image (use with --no-run to control the start)", "Started", (*rio.Session).Run),
		imageCommand("abort", "Stop the image", "Aborted", (*rio.Session).Abort),
		imageCommand("reset", "Reset the image to its initial state", "Reset", (*rio.Session).Reset),
		imageCommand("download", "Download the bitfile to the target again", "Downloaded", (*rio.Session).Download),
	)
}
