package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "search [TERM]",
		Short: "Search the registry index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) > 0 {
				term = args[0]
			}
			hits, err := appCtx.Search(appCtx.Context(cmd.Context()), term, remote)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("No packages found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, e := range hits {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Version, e.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "refetch the registry index instead of using the cached copy")
	return cmd
}
