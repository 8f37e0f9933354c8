package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"redumparchive/internal/crawler"
	"redumparchive/internal/journal"
	"redumparchive/internal/scrapers/redump"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

var outcomeOrder = []crawler.Outcome{
	crawler.OutcomePersisted,
	crawler.OutcomeUnchanged,
	crawler.OutcomeNotFound,
	crawler.OutcomeFailed,
}

func renderResult(w io.Writer, result crawler.Result, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Outcome", "IDs"})
	t.AppendRow(table.Row{"discovered", result.Discovered})
	for _, outcome := range outcomeOrder {
		t.AppendRow(table.Row{outcome.String(), result.Outcomes[outcome]})
	}
	t.AppendFooter(table.Row{"elapsed", elapsed.Round(time.Millisecond).String()})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(result.IDs) == 0 {
		fmt.Fprintln(w, "nothing new")
		return
	}
	ids := make([]string, len(result.IDs))
	for i, id := range result.IDs {
		ids[i] = id.String()
	}
	fmt.Fprintln(w, strings.Join(ids, " "))
}

func renderPacks(w io.Writer, written []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Pack", "Size"})
	var total uint64
	for _, path := range written {
		size := "?"
		info, err := os.Stat(path)
		if err == nil {
			size = humanize.Bytes(uint64(info.Size()))
			total += uint64(info.Size())
		}
		t.AppendRow(table.Row{path, size})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d written", len(written)), humanize.Bytes(total)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func renderRuns(w io.Writer, runs []journal.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Mode", "Started", "Duration", "Processed", "Persisted", "Params"})
	for _, run := range runs {
		duration := "interrupted"
		if !run.FinishedAt.IsZero() {
			duration = run.FinishedAt.Sub(run.StartedAt).String()
		}
		t.AppendRow(table.Row{
			run.ID,
			run.Mode,
			humanize.Time(run.StartedAt),
			duration,
			run.Processed,
			run.Persisted,
			run.Params,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func renderHistory(w io.Writer, id redump.ContentID, history []journal.Entry) {
	if len(history) == 0 {
		fmt.Fprintf(w, "%s has never been processed\n", id)
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(id.String())
	t.AppendHeader(table.Row{"Run", "Recorded", "Outcome", "Marker"})
	for _, entry := range history {
		t.AppendRow(table.Row{
			entry.RunID,
			entry.RecordedAt.Format(time.DateTime),
			entry.Outcome,
			entry.Marker,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
