package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tanteli/imx-starknet/internal/installer"
)

func installCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "install [dir]",
		Short: "Vendor the dependency closure under packages/",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := appCtx.Install(appCtx.Context(cmd.Context()), packageDir(args), remote)
			if err != nil {
				return err
			}
			if len(res.Order) == 0 {
				fmt.Println("Nothing to install.")
				return nil
			}
			fmt.Printf("Installed %d package(s) into %s/\n", len(res.Order), installer.VendorDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "re-resolve against a fresh registry index, ignoring the lock file")
	return cmd
}
