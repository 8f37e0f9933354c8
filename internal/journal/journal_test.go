package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"redumparchive/internal/components/chrono"
	"redumparchive/internal/components/telemetry"
	"redumparchive/internal/crawler"
	"redumparchive/internal/scrapers/redump"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, *chrono.FakeTime) {
	clock := chrono.NewFakeTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	journal, err := Open(context.Background(), ":memory:", clock, telemetry.NewRecorder())
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return journal, clock
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	journal, clock := openTestJournal(t)

	run, err := journal.StartRun(ctx, "range", crawler.Request{Mode: crawler.ModeRange, Min: 1, Max: 3})
	require.NoError(t, err)

	run.Record(ctx, crawler.Record{ID: 1, Catalog: redump.CatalogDiscs, Outcome: crawler.OutcomePersisted, Marker: "2024-01-01"})
	run.Record(ctx, crawler.Record{ID: 2, Catalog: redump.CatalogDiscs, Outcome: crawler.OutcomeNotFound})
	run.Record(ctx, crawler.Record{ID: 3, Catalog: redump.CatalogDiscs, Outcome: crawler.OutcomeUnchanged, Marker: "2023-12-31"})
	require.Equal(t, int64(3), run.Processed())

	clock.Sleep(ctx, time.Minute)
	require.NoError(t, run.Finish(ctx))

	runs, err := journal.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "range", runs[0].Mode)
	require.Contains(t, runs[0].Params, `"Min":1`)
	require.Equal(t, int64(3), runs[0].Processed)
	require.Equal(t, int64(1), runs[0].Persisted)
	require.Equal(t, time.Minute, runs[0].FinishedAt.Sub(runs[0].StartedAt))
}

func TestInterruptedRunHasNoFinish(t *testing.T) {
	ctx := context.Background()
	journal, _ := openTestJournal(t)

	_, err := journal.StartRun(ctx, "last-modified", nil)
	require.NoError(t, err)
	second, err := journal.StartRun(ctx, "user", map[string]string{"user": "dumper"})
	require.NoError(t, err)
	require.NoError(t, second.Finish(ctx))

	runs, err := journal.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "user", runs[0].Mode, "newest first")
	require.False(t, runs[0].FinishedAt.IsZero())
	require.True(t, runs[1].FinishedAt.IsZero())

	runs, err = journal.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	journal, clock := openTestJournal(t)

	first, err := journal.StartRun(ctx, "range", nil)
	require.NoError(t, err)
	first.Record(ctx, crawler.Record{ID: 42, Catalog: redump.CatalogDiscs, Outcome: crawler.OutcomePersisted, Marker: "a"})
	first.Record(ctx, crawler.Record{ID: 42, Catalog: redump.CatalogWIP, Outcome: crawler.OutcomePersisted, Marker: "1200"})

	clock.Sleep(ctx, time.Hour)
	second, err := journal.StartRun(ctx, "range", nil)
	require.NoError(t, err)
	second.Record(ctx, crawler.Record{ID: 42, Catalog: redump.CatalogDiscs, Outcome: crawler.OutcomeUnchanged, Marker: "a"})

	history, err := journal.History(ctx, redump.CatalogDiscs, 42)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.ID, history[0].RunID)
	require.Equal(t, "unchanged", history[0].Outcome)
	require.Equal(t, "persisted", history[1].Outcome)

	history, err = journal.History(ctx, redump.CatalogDiscs, 7)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	journal, _ := openTestJournal(t)

	run, err := journal.StartRun(ctx, "range", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run.Record(ctx, crawler.Record{ID: redump.ContentID(i), Outcome: crawler.OutcomePersisted})
		}()
	}
	wg.Wait()

	runs, err := journal.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(50), runs[0].Processed)
	require.Equal(t, int64(50), runs[0].Persisted)
}

func TestRecordFailureIsReported(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewRecorder()
	journal, err := Open(ctx, ":memory:", chrono.NewFakeTime(time.Time{}), tel)
	require.NoError(t, err)

	run, err := journal.StartRun(ctx, "range", nil)
	require.NoError(t, err)
	require.NoError(t, journal.Close())

	run.Record(ctx, crawler.Record{ID: 1, Outcome: crawler.OutcomePersisted})
	require.Len(t, tel.Reports(report_journal_record), 1)
	require.Zero(t, run.Processed())
}

func TestJournalAsRecorder(t *testing.T) {
	var _ crawler.Recorder = (*Run)(nil)
	require.Equal(t, "/data/redump/.journal.db", Path("/data/redump"))
}
