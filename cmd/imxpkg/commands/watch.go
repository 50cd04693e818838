package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream publish and yank events from the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(appCtx.Context(cmd.Context()))
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			events, err := appCtx.Watch(ctx)
			if err != nil {
				return err
			}
			for ev := range events {
				fmt.Printf("%s  %-9s %s %s\n", ev.At.Format(time.RFC3339), ev.Kind, ev.Package, ev.Version)
			}
			return nil
		},
	}
}
