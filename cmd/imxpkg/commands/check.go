package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tanteli/imx-starknet/internal/app"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Validate the manifest and report the lock state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, state, err := appCtx.Check(appCtx.Context(cmd.Context()), packageDir(args))
			if err != nil {
				return err
			}
			fmt.Printf("%s %s: manifest ok, lock %s\n", d.Name, d.Version, state)
			if state == app.LockStale {
				return fmt.Errorf("the manifest changed since the lock file was written, run 'imxpkg lock'")
			}
			return nil
		},
	}
}
