package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Tanteli/imx-starknet/internal/app"
)

var (
	home        string
	registryURL string
	logLevel    string
	logFormat   string
	workers     int

	appCtx *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:           "imxpkg",
		Short:         "Package manager for Cairo contract libraries",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.NewConfig(app.Config{
				Home:        home,
				RegistryURL: registryURL,
				LogLevel:    logLevel,
				LogFormat:   logFormat,
				Workers:     workers,
			})
			if err != nil {
				return err
			}
			appCtx = app.New(os.Stderr, cfg)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return appCtx.Close()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.imxpkg)")
	root.PersistentFlags().StringVar(&registryURL, "registry", "", "registry base URL (default "+app.DefaultRegistryURL+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	root.PersistentFlags().IntVar(&workers, "workers", 0, "parallel install workers")

	root.AddCommand(
		initCmd(), checkCmd(), showCmd(),
		addCmd(), removeCmd(), bumpCmd(),
		lockCmd(), installCmd(), listCmd(),
		searchCmd(), publishCmd(), yankCmd(), watchCmd(),
	)
	return root.Execute()
}

// packageDir interprets the optional positional argument of manifest
// commands, defaulting to the current directory.
func packageDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
