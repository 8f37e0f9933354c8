package db

import (
	"context"
	"database/sql"
)

type Run struct {
	ID         int64
	Mode       string
	Params     string
	StartedAt  int64
	FinishedAt sql.NullInt64
	Processed  int64
}

type Outcome struct {
	RunID      int64
	ContentID  int64
	Catalog    string
	Outcome    string
	Marker     string
	RecordedAt int64
}

const createRun = `-- name: CreateRun :one
insert into run(mode, params, started_at)
values (?, ?, ?)
returning id
`

type CreateRunParams struct {
	Mode      string
	Params    string
	StartedAt int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createRun, arg.Mode, arg.Params, arg.StartedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const finishRun = `-- name: FinishRun :exec
update run set finished_at = ?
where id = ?
`

type FinishRunParams struct {
	FinishedAt sql.NullInt64
	ID         int64
}

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) error {
	_, err := q.db.ExecContext(ctx, finishRun, arg.FinishedAt, arg.ID)
	return err
}

const incrementProcessed = `-- name: IncrementProcessed :exec
update run set processed = processed + 1
where id = ?
`

func (q *Queries) IncrementProcessed(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, incrementProcessed, id)
	return err
}

const createOutcome = `-- name: CreateOutcome :exec
insert into outcome(run_id, content_id, catalog, outcome, marker, recorded_at)
values (?, ?, ?, ?, ?, ?)
`

type CreateOutcomeParams struct {
	RunID      int64
	ContentID  int64
	Catalog    string
	Outcome    string
	Marker     string
	RecordedAt int64
}

func (q *Queries) CreateOutcome(ctx context.Context, arg CreateOutcomeParams) error {
	_, err := q.db.ExecContext(ctx, createOutcome,
		arg.RunID,
		arg.ContentID,
		arg.Catalog,
		arg.Outcome,
		arg.Marker,
		arg.RecordedAt,
	)
	return err
}

const listRecentRuns = `-- name: ListRecentRuns :many
select
    run.id, run.mode, run.params, run.started_at, run.finished_at, run.processed,
    (select count(*) from outcome where outcome.run_id = run.id and outcome.outcome = 'persisted') as persisted
from run
order by run.id desc
limit ?
`

type ListRecentRunsRow struct {
	ID         int64
	Mode       string
	Params     string
	StartedAt  int64
	FinishedAt sql.NullInt64
	Processed  int64
	Persisted  int64
}

func (q *Queries) ListRecentRuns(ctx context.Context, limit int64) ([]ListRecentRunsRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecentRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListRecentRunsRow
	for rows.Next() {
		var i ListRecentRunsRow
		if err := rows.Scan(
			&i.ID,
			&i.Mode,
			&i.Params,
			&i.StartedAt,
			&i.FinishedAt,
			&i.Processed,
			&i.Persisted,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listContentOutcomes = `-- name: ListContentOutcomes :many
select run_id, content_id, catalog, outcome, marker, recorded_at from outcome
where catalog = ? and content_id = ?
order by recorded_at desc, run_id desc
`

type ListContentOutcomesParams struct {
	Catalog   string
	ContentID int64
}

func (q *Queries) ListContentOutcomes(ctx context.Context, arg ListContentOutcomesParams) ([]Outcome, error) {
	rows, err := q.db.QueryContext(ctx, listContentOutcomes, arg.Catalog, arg.ContentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Outcome
	for rows.Next() {
		var i Outcome
		if err := rows.Scan(
			&i.RunID,
			&i.ContentID,
			&i.Catalog,
			&i.Outcome,
			&i.Marker,
			&i.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
