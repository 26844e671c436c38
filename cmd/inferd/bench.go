package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/pkg/types"
)

func newBenchCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the device benchmark suite and print per-backend results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Config{}
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			provider := deviceProvider(cfg)
			profile := provider.Profile()
			cmd.Printf("device: soc=%s class=%s cores=%d caps=%v\n",
				profile.SoC, profile.Class, profile.Cores, profile.Capabilities)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			start := time.Now()
			results, err := provider.RunBenchmark(ctx)
			if err != nil {
				return fmt.Errorf("benchmark: %w", err)
			}
			cmd.Printf("benchmark completed in %s\n\n", time.Since(start).Round(time.Millisecond))

			backends := make([]string, 0, len(results.Results))
			for b := range results.Results {
				backends = append(backends, string(b))
			}
			sort.Strings(backends)
			for _, b := range backends {
				r := results.Results[types.Backend(b)]
				status := "ok"
				if !r.Success {
					status = "unsupported"
				}
				cmd.Printf("%-16s score=%8.2f exec=%-12s mem=%4dMB %s\n",
					b, r.PerformanceScore, r.ExecutionTime.Round(time.Microsecond), r.MemoryMB, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml/.json/.toml)")
	return cmd
}
