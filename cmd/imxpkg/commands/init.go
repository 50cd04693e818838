package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Tanteli/imx-starknet/internal/app"
)

func initCmd() *cobra.Command {
	var opts app.InitOptions
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Author a Package.hcl manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := packageDir(args)
			if opts.Name == "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return err
				}
				opts.Name = filepath.Base(abs)
			}

			d, err := appCtx.Init(appCtx.Context(cmd.Context()), dir, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Initialized %s %s\n", d.Name, d.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "package name (default: directory name)")
	cmd.Flags().StringVar(&opts.Version, "version", "0.1.0", "initial version")
	cmd.Flags().StringVar(&opts.Description, "description", "", "one-line description")
	cmd.Flags().StringVar(&opts.Author, "author", "", "package author")
	cmd.Flags().StringVar(&opts.License, "license", "Apache-2.0", "SPDX license identifier")
	cmd.Flags().StringVar(&opts.URL, "url", "", "project homepage")
	cmd.Flags().StringArrayVar(&opts.Namespaces, "namespace", nil, "namespace the package provides (repeatable, default: derived from the name)")
	cmd.Flags().BoolVar(&opts.IncludeData, "include-data", false, "publish non-Cairo files too")
	return cmd
}
