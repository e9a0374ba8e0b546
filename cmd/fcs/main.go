// Command fcs runs the CLARIN FCS SRU endpoint and its maintenance tools.
//
// Usage:
//
//	fcs serve [--config configs/config.yaml]
//	fcs cql '<query>'
//	fcs cache flush [--config configs/config.yaml]
//	fcs loadtest [--url http://localhost:8080] [--concurrency 10] [--duration 30s]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "fcs",
		Short:         "CLARIN FCS endpoint over PostgreSQL full-text search",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newCQLCmd(),
		newCacheCmd(&configPath),
		newLoadTestCmd(),
	)
	return root
}
