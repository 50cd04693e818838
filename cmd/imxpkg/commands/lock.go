package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func lockCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "lock [dir]",
		Short: "Resolve dependencies and write imxpkg.lock",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := appCtx.Lock(appCtx.Context(cmd.Context()), packageDir(args), remote)
			if err != nil {
				return err
			}
			for _, name := range l.Names() {
				r, _ := l.Entry(name)
				fmt.Printf("%s %s (%s)\n", r.Name, r.Version, r.Source)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "refetch the registry index instead of using the cached copy")
	return cmd
}
