package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"redumparchive/internal/crawler"
	"redumparchive/internal/journal"

	"github.com/spf13/cobra"
)

var (
	lastModifiedAll *bool
	queryQuick      *bool
	queryReplace    *bool
)

func init() {
	lastModifiedAll = lastModifiedCmd.Flags().Bool("all", false, "Keep paging until the listing runs out.")
	queryQuick = queryCmd.Flags().Bool("quick", false, "Use the quick search instead of the full search.")
	queryReplace = queryCmd.Flags().Bool("replace-slashes", false, "Submit slashes in the query as dashes.")

	rootCmd.AddCommand(rangeCmd, lastModifiedCmd, userCmd, queryCmd, wipCmd)
}

var rangeCmd = &cobra.Command{
	Use:   "range <min> <max>",
	Short: "Archives every disc id in [min, max].",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		min, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("min: %w", err)
		}
		max, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("max: %w", err)
		}
		return runDiscovery(cmd, crawler.Request{Mode: crawler.ModeRange, Min: min, Max: max})
	},
}

var lastModifiedCmd = &cobra.Command{
	Use:   "last-modified [--all]",
	Short: "Archives the most recently modified discs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscovery(cmd, crawler.Request{Mode: crawler.ModeLastModified, ContinueUntilEmpty: *lastModifiedAll})
	},
}

var userCmd = &cobra.Command{
	Use:   "user <name>",
	Short: "Archives every disc attributed to a dumper.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscovery(cmd, crawler.Request{Mode: crawler.ModeUser, Username: args[0]})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <text> [--quick] [--replace-slashes]",
	Short: "Archives every disc matching a search.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscovery(cmd, crawler.Request{
			Mode:           crawler.ModeQuery,
			Query:          args[0],
			Quick:          *queryQuick,
			ReplaceSlashes: *queryReplace,
		})
	},
}

var wipCmd = &cobra.Command{
	Use:   "wip",
	Short: "Archives the work-in-progress submission queue (staff only).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscovery(cmd, crawler.Request{Mode: crawler.ModeWIP})
	},
}

func runDiscovery(cmd *cobra.Command, req crawler.Request) error {
	req.ListOnly = *listOnly
	err := req.Validate()
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	var journalRun *journal.Run
	var recorder crawler.Recorder
	if !req.ListOnly {
		journalRun, err = s.journal.StartRun(ctx, req.Mode.String(), req)
		if err != nil {
			slog.Warn("journal unavailable for this run", "err", err)
			journalRun = nil
		} else {
			recorder = journalRun
		}
	}

	start := time.Now()
	result, err := s.crawler(logProgress, recorder).Run(ctx, req)
	interrupted := ctx.Err() != nil && errors.Is(err, ctx.Err())
	if err != nil && !interrupted {
		return err
	}
	// interrupted runs are left unfinished in the journal
	if journalRun != nil && !interrupted {
		journalRun.Finish(ctx)
	}

	if req.ListOnly {
		for _, id := range result.IDs {
			fmt.Fprintln(os.Stdout, id.String())
		}
		return nil
	}

	renderResult(os.Stdout, result, time.Since(start))
	if interrupted {
		slog.Warn("run interrupted, the summary only covers the ids processed so far")
	}
	return nil
}
