package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func removeCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Drop a dependency from the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := appCtx.RemoveDependency(appCtx.Context(cmd.Context()), dir, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s no longer depends on %s\n", d.Name, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "package directory")
	return cmd
}
