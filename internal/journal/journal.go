// Package journal keeps a sqlite record of every archiving run and the
// outcome of every content id it touched.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"redumparchive/internal/components/assert"
	"redumparchive/internal/components/chrono"
	"redumparchive/internal/components/telemetry"
	"redumparchive/internal/crawler"
	"redumparchive/internal/journal/db"
	"redumparchive/internal/scrapers/redump"
)

const Filename = ".journal.db"

const (
	report_journal_record = "journal.record"
	report_journal_finish = "journal.finish"
)

type Journal struct {
	db     *sql.DB
	qry    *db.Queries
	makeTx db.MakeTx
	time   chrono.TimeAPI
	tel    telemetry.API
}

// Path returns where the journal of an output root lives.
func Path(root string) string {
	return filepath.Join(root, Filename)
}

// Open opens (creating if needed) the journal at path, ":memory:" gives a
// throwaway journal.
func Open(ctx context.Context, path string, time chrono.TimeAPI, tel telemetry.API) (*Journal, error) {
	assert.NotNil(time)
	assert.NotNil(tel)

	sqlite, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, this also keeps :memory: databases
	// from being split across connections.
	sqlite.SetMaxOpenConns(1)

	_, err = sqlite.ExecContext(ctx, db.Schema)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}

	return &Journal{
		db:     sqlite,
		qry:    db.New(sqlite),
		makeTx: db.NewMakeTx(sqlite),
		time:   time,
		tel:    telemetry.NewScopedAPI("journal", tel),
	}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Run records the outcomes of one crawler run, it implements crawler.Recorder.
type Run struct {
	ID        int64
	journal   *Journal
	processed atomic.Int64
}

// StartRun creates the journal entry for a run, params is stored as json.
func (j *Journal) StartRun(ctx context.Context, mode string, params any) (*Run, error) {
	assert.NotEmptyStr(mode)
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	id, err := j.qry.CreateRun(ctx, db.CreateRunParams{
		Mode:      mode,
		Params:    string(encoded),
		StartedAt: j.time.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: create run: %w", err)
	}
	return &Run{ID: id, journal: j}, nil
}

// Record never fails the run, errors are only reported.
func (r *Run) Record(ctx context.Context, record crawler.Record) {
	err := r.record(ctx, record)
	if err != nil {
		r.journal.tel.ReportBroken(report_journal_record, err, r.ID, int(record.ID))
		return
	}
	r.processed.Add(1)
}

func (r *Run) record(ctx context.Context, record crawler.Record) error {
	txqry, discard, commit, err := r.journal.makeTx(ctx)
	if err != nil {
		return err
	}
	defer discard()

	err = txqry.CreateOutcome(ctx, db.CreateOutcomeParams{
		RunID:      r.ID,
		ContentID:  int64(record.ID),
		Catalog:    record.Catalog.String(),
		Outcome:    record.Outcome.String(),
		Marker:     record.Marker,
		RecordedAt: r.journal.time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	err = txqry.IncrementProcessed(ctx, r.ID)
	if err != nil {
		return err
	}
	return commit()
}

// Processed is the number of outcomes recorded so far.
func (r *Run) Processed() int64 {
	return r.processed.Load()
}

func (r *Run) Finish(ctx context.Context) error {
	err := r.journal.qry.FinishRun(ctx, db.FinishRunParams{
		ID:         r.ID,
		FinishedAt: sql.NullInt64{Int64: r.journal.time.Now().Unix(), Valid: true},
	})
	if err != nil {
		r.journal.tel.ReportBroken(report_journal_finish, err, r.ID)
		return err
	}
	return nil
}

type RunSummary struct {
	ID        int64
	Mode      string
	Params    string
	StartedAt time.Time
	// FinishedAt is zero for runs that were interrupted.
	FinishedAt time.Time
	Processed  int64
	Persisted  int64
}

func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := j.qry.ListRecentRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, len(rows))
	for i, row := range rows {
		out[i] = RunSummary{
			ID:        row.ID,
			Mode:      row.Mode,
			Params:    row.Params,
			StartedAt: time.Unix(row.StartedAt, 0),
			Processed: row.Processed,
			Persisted: row.Persisted,
		}
		if row.FinishedAt.Valid {
			out[i].FinishedAt = time.Unix(row.FinishedAt.Int64, 0)
		}
	}
	return out, nil
}

type Entry struct {
	RunID      int64
	Outcome    string
	Marker     string
	RecordedAt time.Time
}

// History lists every recorded outcome of one content id, newest first.
func (j *Journal) History(ctx context.Context, catalog redump.Catalog, id redump.ContentID) ([]Entry, error) {
	rows, err := j.qry.ListContentOutcomes(ctx, db.ListContentOutcomesParams{
		Catalog:   catalog.String(),
		ContentID: int64(id),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = Entry{
			RunID:      row.RunID,
			Outcome:    row.Outcome,
			Marker:     row.Marker,
			RecordedAt: time.Unix(row.RecordedAt, 0),
		}
	}
	return out, nil
}
