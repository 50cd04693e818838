package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func yankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "yank NAME VERSION",
		Short: "Mark a published version as withdrawn",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Yank(appCtx.Context(cmd.Context()), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Yanked %s %s\n", args[0], args[1])
			return nil
		},
	}
}
