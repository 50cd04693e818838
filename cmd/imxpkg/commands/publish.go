package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish [dir]",
		Short: "Archive the package and push it to the registry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := appCtx.Publish(appCtx.Context(cmd.Context()), packageDir(args))
			if err != nil {
				return err
			}
			fmt.Printf("Published %s %s\n", entry.Name, entry.Version)
			fmt.Printf("Integrity: %s\n", entry.Integrity)
			return nil
		},
	}
}
