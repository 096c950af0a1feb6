package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// RunStore records harness invocations.
type RunStore struct {
	db QueryInterceptor
}

func NewRunStore(db QueryInterceptor) *RunStore {
	return &RunStore{db: db}
}

// Start registers a new run and returns it.
func (s *RunStore) Start(ctx context.Context, command, controller string) (*models.Run, error) {
	run := &models.Run{
		ID:         uuid.NewString(),
		Command:    command,
		Controller: controller,
		StartedAt:  time.Now().UTC(),
	}
	query, args, err := sq.Insert("runs").
		Columns("run_id", "command", "controller", "started_at").
		Values(run.ID, run.Command, run.Controller, run.StartedAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *RunStore) Get(ctx context.Context, id string) (*models.Run, error) {
	query, args, err := sq.Select("run_id", "command", "controller", "started_at").
		From("runs").
		Where(sq.Eq{"run_id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var run models.Run
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.Command, &run.Controller, &run.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, srvErrors.NewResourceNotFoundError("run", id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs, most recent first.
func (s *RunStore) List(ctx context.Context) ([]models.Run, error) {
	query, args, err := sq.Select("run_id", "command", "controller", "started_at").
		From("runs").
		OrderBy("started_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		if err := rows.Scan(&run.ID, &run.Command, &run.Controller, &run.StartedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
