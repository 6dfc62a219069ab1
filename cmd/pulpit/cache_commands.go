package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pulpit/internal/cache"
	"pulpit/internal/store"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the assistant response cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheSweepCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry and hit counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withCache(cmd, func(svc *cache.Service, backend string) error {
				stats, err := svc.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{
						"backend":    backend,
						"entries":    stats.Entries,
						"expired":    stats.Expired,
						"total_hits": stats.TotalHits,
					})
				}
				writeTable(cmd.OutOrStdout(), []string{"Backend", "Entries", "Expired", "Hits"}, [][]string{{
					backend,
					strconv.FormatInt(stats.Entries, 10),
					strconv.FormatInt(stats.Expired, 10),
					strconv.FormatInt(stats.TotalHits, 10),
				}}, []columnAlignment{alignLeft, alignRight, alignRight, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCacheSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withCache(cmd, func(svc *cache.Service, _ string) error {
				removed, err := svc.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entr%s\n", removed, pluralY(removed))
				return nil
			})
		},
	}
}

// withCache opens the configured cache backend without wiring the rest of
// the runtime.
func (c *commandContext) withCache(cmd *cobra.Command, fn func(*cache.Service, string) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer st.Close()
	backend, closeBackend, err := cache.OpenBackend(cmd.Context(), cfg, st)
	if err != nil {
		return fmt.Errorf("open cache backend: %w", err)
	}
	defer closeBackend()
	svc := cache.NewService(backend, c.logger(), cache.WithTTL(cfg.CacheTTL()))
	return fn(svc, cfg.Cache.Backend)
}

func pluralY(n int64) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
