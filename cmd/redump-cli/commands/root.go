package commands

import (
	"context"

	"redumparchive/internal/components/telemetry"
	"redumparchive/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	outputDir  *string
	listOnly   *bool
	rename     *bool
	retries    *int
	workers    *int
	verbose    *bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	configPath = flags.String("config", "", "Config file to read, defaults to the nearest redump.json5.")
	outputDir = flags.StringP("out", "o", "", "The output root to archive into.")
	listOnly = flags.Bool("list", false, "Only print the discovered ids, nothing is downloaded.")
	rename = flags.Bool("rename", false, "Tombstone local copies of ids that no longer exist.")
	retries = flags.Int("retries", 0, "Attempts per request, 0 or less fails every request.")
	workers = flags.Int("workers", 0, "How many ids are fetched at once.")
	verbose = flags.BoolP("verbose", "v", false, "Log debug output.")
}

var rootCmd = &cobra.Command{
	Use:   "redump-cli",
	Short: "redump-cli incrementally archives disc pages and packs from redump.org.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
	SilenceUsage: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("redump-cli failed", err)
	}
}
