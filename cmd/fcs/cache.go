package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/cmdi"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/logger"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/redis"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage the shared CMDI cache",
	}
	cache.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Remove every cached CMDI record from Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			if cfg.Redis.Addr == "" {
				return errors.New("redis.addr is not configured")
			}
			client, err := pkgredis.NewClient(cmd.Context(), cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()

			shared := cmdi.NewSharedCache(cmdi.NewHTTPFetcher(cfg.CMDI.Timeout), client, cfg.Redis.CacheTTL, nil)
			n, err := shared.Invalidate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached records\n", n)
			return nil
		},
	})
	return cache
}
