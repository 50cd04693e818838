package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func bumpCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "bump {major|minor|patch}",
		Short: "Raise the manifest version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, previous, err := appCtx.Bump(appCtx.Context(cmd.Context()), dir, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s -> %s\n", d.Name, previous, d.Version)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "package directory")
	return cmd
}
