package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
	"github.com/tower-qa/tower-qa/pkg/filter"
)

const observationsTable = "job_observations"

var observationColumns = []string{
	"run_id",
	"job_id",
	"job_type",
	"name",
	"status",
	"failed",
	"template_id",
	"execution_node",
	"job_explanation",
	"elapsed",
	"created",
	"started",
	"finished",
	"observed_at",
}

// ObservationStore is the ledger of job snapshots taken while waiting.
type ObservationStore struct {
	db QueryInterceptor
}

func NewObservationStore(db QueryInterceptor) *ObservationStore {
	return &ObservationStore{db: db}
}

// Record appends one snapshot to the ledger.
func (s *ObservationStore) Record(ctx context.Context, obs models.Observation) error {
	if obs.RunID == "" {
		return srvErrors.NewInvalidArgumentError("run_id", "must not be empty")
	}
	j := obs.Job
	query, args, err := sq.Insert(observationsTable).
		Columns(observationColumns...).
		Values(
			obs.RunID,
			j.ID,
			string(j.Type),
			j.Name,
			string(j.Status),
			j.Failed,
			nullInt(j.UnifiedJobTemplate),
			nullString(j.ExecutionNode),
			nullString(j.JobExplanation),
			j.Elapsed,
			j.Created.UTC(),
			nullTime(j.Started),
			nullTime(j.Finished),
			obs.ObservedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// Recorder returns a waiter observer that records every snapshot under runID.
// Failures are reported to onErr and never interrupt the wait.
func (s *ObservationStore) Recorder(ctx context.Context, runID string, onErr func(error)) func(*models.UnifiedJob) {
	return func(j *models.UnifiedJob) {
		err := s.Record(ctx, models.Observation{RunID: runID, Job: *j, ObservedAt: time.Now()})
		if err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// List returns observations ordered by observation time.
func (s *ObservationStore) List(ctx context.Context, opts ...ListOption) ([]models.Observation, error) {
	builder := sq.Select(observationColumns...).From(observationsTable)
	for _, opt := range opts {
		builder = opt(builder)
	}
	builder = builder.OrderBy("observed_at", "id")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var (
			o         models.Observation
			jobType   string
			status    string
			template  sql.NullInt64
			node      sql.NullString
			explained sql.NullString
			started   sql.NullTime
			finished  sql.NullTime
		)
		err := rows.Scan(
			&o.RunID,
			&o.Job.ID,
			&jobType,
			&o.Job.Name,
			&status,
			&o.Job.Failed,
			&template,
			&node,
			&explained,
			&o.Job.Elapsed,
			&o.Job.Created,
			&started,
			&finished,
			&o.ObservedAt,
		)
		if err != nil {
			return nil, err
		}
		o.Job.Type = models.JobType(jobType)
		o.Job.Status = models.JobStatus(status)
		o.Job.UnifiedJobTemplate = int(template.Int64)
		o.Job.ExecutionNode = node.String
		o.Job.JobExplanation = explained.String
		if started.Valid {
			o.Job.Started = &started.Time
		}
		if finished.Valid {
			o.Job.Finished = &finished.Time
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Count returns the number of observations matching opts.
func (s *ObservationStore) Count(ctx context.Context, opts ...ListOption) (int, error) {
	builder := sq.Select("COUNT(*)").From(observationsTable)
	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// Latest returns the last snapshot of every job, in order of first sighting.
func (s *ObservationStore) Latest(ctx context.Context, opts ...ListOption) ([]models.Observation, error) {
	all, err := s.List(ctx, opts...)
	if err != nil {
		return nil, err
	}

	index := make(map[models.JobRef]int)
	var out []models.Observation
	for _, o := range all {
		ref := o.Job.Ref()
		if i, ok := index[ref]; ok {
			out[i] = o
			continue
		}
		index[ref] = len(out)
		out = append(out, o)
	}
	return out, nil
}

// Intervals returns the [started, finished] span of every job that
// finished, as seen in its last snapshot. Jobs whose last snapshot has no
// valid interval, unfinished or inverted, are left out.
func (s *ObservationStore) Intervals(ctx context.Context, opts ...ListOption) ([]models.Interval, error) {
	latest, err := s.Latest(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var out []models.Interval
	for _, o := range latest {
		interval, err := o.Job.Interval()
		if err != nil {
			continue
		}
		out = append(out, interval)
	}
	return out, nil
}

// ListOption modifies a SELECT query for filtering and pagination.
type ListOption func(sq.SelectBuilder) sq.SelectBuilder

// ByRun restricts to observations recorded under one run.
func ByRun(runID string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if runID == "" {
			return b
		}
		return b.Where(sq.Eq{"run_id": runID})
	}
}

// ByJob restricts to the snapshots of one job.
func ByJob(ref models.JobRef) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.Eq{"job_type": string(ref.Type), "job_id": ref.ID})
	}
}

// ByStatus filters by status (OR logic).
func ByStatus(statuses ...models.JobStatus) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(statuses) == 0 {
			return b
		}
		values := make([]string, len(statuses))
		for i, st := range statuses {
			values[i] = string(st)
		}
		return b.Where(sq.Eq{"status": values})
	}
}

// ByFilter parses a filter expression such as
// "status = 'failed' and elapsed > 2m". Unknown fields are rejected.
func ByFilter(expression string) (ListOption, error) {
	if strings.TrimSpace(expression) == "" {
		return func(b sq.SelectBuilder) sq.SelectBuilder { return b }, nil
	}

	expr, err := filter.Parse([]byte(expression))
	if err != nil {
		return nil, srvErrors.NewInvalidArgumentError("filter", err.Error())
	}
	for _, name := range filter.Identifiers(expr) {
		if !filter.IsField(name) {
			return nil, srvErrors.NewInvalidArgumentError("filter",
				fmt.Sprintf("unknown field %q, expected one of %s", name, strings.Join(filter.Fields(), ", ")))
		}
	}

	clause := expr.Sql()
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(clause)
	}, nil
}

// WithLimit sets the LIMIT clause.
func WithLimit(limit uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if limit == 0 {
			return b
		}
		return b.Limit(limit)
	}
}

// ListObservations lists the ledger filtered by a filter expression.
func (s *ObservationStore) ListObservations(ctx context.Context, expression string, limit uint64) ([]models.Observation, error) {
	byFilter, err := ByFilter(expression)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, byFilter, WithLimit(limit))
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
