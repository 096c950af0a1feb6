package main

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

// UnifiedJobRow is a job as the controller stored it, read around the API.
type UnifiedJobRow struct {
	ID            int
	Name          string
	Status        string
	Failed        bool
	ExecutionNode string
	Created       time.Time
	Started       *time.Time
	Finished      *time.Time
}

type InstanceRow struct {
	Hostname           string
	Enabled            bool
	Capacity           int
	CPUCapacity        int
	MemCapacity        int
	CapacityAdjustment float64
}

// DbReadWriter reads the controller database directly, to check what the
// API reports against what was persisted.
type DbReadWriter struct {
	db   *sql.DB
	psql sq.StatementBuilderType
}

func NewDbReadWriter(connString string) (*DbReadWriter, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &DbReadWriter{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

func (d *DbReadWriter) Close() error {
	return d.db.Close()
}

func (d *DbReadWriter) GetUnifiedJob(ctx context.Context, id int) (*UnifiedJobRow, error) {
	query, args, err := d.psql.Select("id", "name", "status", "failed", "execution_node", "created", "started", "finished").
		From("main_unifiedjob").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		j        UnifiedJobRow
		started  sql.NullTime
		finished sql.NullTime
	)
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&j.ID, &j.Name, &j.Status, &j.Failed, &j.ExecutionNode, &j.Created, &started, &finished,
	); err != nil {
		return nil, err
	}
	if started.Valid {
		j.Started = &started.Time
	}
	if finished.Valid {
		j.Finished = &finished.Time
	}
	return &j, nil
}

// CountActiveJobs counts jobs the task manager has not finished with.
func (d *DbReadWriter) CountActiveJobs(ctx context.Context) (int, error) {
	query, args, err := d.psql.Select("count(*)").
		From("main_unifiedjob").
		Where(sq.Eq{"status": []string{"pending", "waiting", "running"}}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = d.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (d *DbReadWriter) ListInstances(ctx context.Context) ([]InstanceRow, error) {
	query, args, err := d.psql.Select("hostname", "enabled", "capacity", "cpu_capacity", "mem_capacity", "capacity_adjustment").
		From("main_instance").
		OrderBy("hostname").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []InstanceRow
	for rows.Next() {
		var i InstanceRow
		if err := rows.Scan(&i.Hostname, &i.Enabled, &i.Capacity, &i.CPUCapacity, &i.MemCapacity, &i.CapacityAdjustment); err != nil {
			return nil, err
		}
		instances = append(instances, i)
	}
	return instances, rows.Err()
}
