package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.store.GetStorageStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			_, _ = fmt.Fprintf(out, "root:        %s\n", a.store.Root())
			_, _ = fmt.Fprintf(out, "algorithm:   %s\n", a.store.Algorithm())
			_, _ = fmt.Fprintf(out, "entries:     %d\n", stats.ContentCount)
			_, _ = fmt.Fprintf(out, "used:        %d bytes\n", stats.UsedSize)
			_, _ = fmt.Fprintf(out, "average:     %d bytes\n", stats.AverageSize)
			_, _ = fmt.Fprintf(out, "temp files:  %d\n", stats.TempCount)
			if stats.TotalSize > 0 {
				_, _ = fmt.Fprintf(out, "disk total:  %d bytes\n", stats.TotalSize)
				_, _ = fmt.Fprintf(out, "disk free:   %d bytes\n", stats.AvailableSize)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON")
	return cmd
}
