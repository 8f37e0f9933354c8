package commands

import (
	"os"

	"redumparchive/internal/archive"
	"redumparchive/internal/components/chrono"
	"redumparchive/internal/components/telemetry"
	"redumparchive/internal/journal"
	"redumparchive/internal/scrapers/redump"

	"github.com/spf13/cobra"
)

var (
	journalLimit *int
	journalID    *int
	journalWip   *bool
)

func init() {
	journalLimit = journalCmd.Flags().Int("limit", 20, "How many runs to show.")
	journalID = journalCmd.Flags().Int("id", -1, "Show the recorded history of one content id instead.")
	journalWip = journalCmd.Flags().Bool("wip", false, "The id given to --id is a WIP submission.")
	rootCmd.AddCommand(journalCmd)
}

var journalCmd = &cobra.Command{
	Use:   "journal [--limit <n>] [--id <id> [--wip]]",
	Short: "Prints the runs recorded in the output root.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		layout, err := archive.NewLayout(cfg.OutputDir)
		if err != nil {
			return err
		}
		j, err := journal.Open(cmd.Context(), journal.Path(layout.Root()), chrono.NewStandardTime(), telemetry.NewSlogAPI(nil))
		if err != nil {
			return err
		}
		defer j.Close()

		if *journalID >= 0 {
			catalog := redump.CatalogDiscs
			if *journalWip {
				catalog = redump.CatalogWIP
			}
			history, err := j.History(cmd.Context(), catalog, redump.ContentID(*journalID))
			if err != nil {
				return err
			}
			renderHistory(os.Stdout, redump.ContentID(*journalID), history)
			return nil
		}

		runs, err := j.RecentRuns(cmd.Context(), *journalLimit)
		if err != nil {
			return err
		}
		renderRuns(os.Stdout, runs)
		return nil
	},
}
