package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *CLI) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.app.Config()
			stats := c.app.Stats(cmd.Context())

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Cache root:  %s\n", cfg.CacheRoot)
			_, _ = fmt.Fprintf(out, "Entries:     %d\n", stats.Entries)
			_, _ = fmt.Fprintf(out, "Used:        %s\n", humanize.IBytes(uint64(stats.TotalBytes)))
			if stats.CapacityBytes > 0 {
				_, _ = fmt.Fprintf(out, "Capacity:    %s\n", humanize.IBytes(uint64(stats.CapacityBytes)))
			} else {
				_, _ = fmt.Fprintf(out, "Capacity:    unlimited\n")
			}
			_, _ = fmt.Fprintf(out, "Caching:     %s\n", onOff(cfg.CacheEnabled))
			_, _ = fmt.Fprintf(out, "Reuse:       %s\n", onOff(cfg.ReuseEnabled))
			_, _ = fmt.Fprintf(out, "Compression: %s\n", onOff(cfg.Compress))
			return nil
		},
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
