package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tanteli/imx-starknet/internal/manifest"
)

func addCmd() *cobra.Command {
	var (
		dir        string
		constraint string
		gitURL     string
		path       string
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Declare a dependency in the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dep := manifest.Dependency{
				Name:       args[0],
				Constraint: constraint,
				Source:     manifest.SourceRegistry,
				Git:        gitURL,
				Path:       path,
			}
			switch {
			case gitURL != "" && path != "":
				return fmt.Errorf("--git and --path are mutually exclusive")
			case gitURL != "":
				dep.Source = manifest.SourceGit
			case path != "":
				dep.Source = manifest.SourcePath
			}

			d, err := appCtx.AddDependency(appCtx.Context(cmd.Context()), dir, dep)
			if err != nil {
				return err
			}
			fmt.Printf("%s now depends on %s\n", d.Name, dep.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "package directory")
	cmd.Flags().StringVar(&constraint, "constraint", "", "version constraint, e.g. '>=0.6.0'")
	cmd.Flags().StringVar(&gitURL, "git", "", "fetch from this git URL instead of the registry")
	cmd.Flags().StringVar(&path, "path", "", "use this local package tree instead of the registry")
	return cmd
}
