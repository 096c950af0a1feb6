package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

const slowStatement = 500 * time.Millisecond

// QueryInterceptor is the subset of *sql.DB the repositories use.
type QueryInterceptor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// tracedDB logs every statement with how long it took. Statements slower
// than slowStatement are logged as warnings.
type tracedDB struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

func newTracedDB(db *sql.DB) *tracedDB {
	return &tracedDB{db: db, logger: zap.S().Named("store")}
}

func (t *tracedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	done := t.trace("query_row", query, args)
	row := t.db.QueryRowContext(ctx, query, args...)
	done(row.Err())
	return row
}

func (t *tracedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	done := t.trace("query", query, args)
	rows, err := t.db.QueryContext(ctx, query, args...)
	done(err)
	return rows, err
}

func (t *tracedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	done := t.trace("exec", query, args)
	res, err := t.db.ExecContext(ctx, query, args...)
	done(err)
	return res, err
}

func (t *tracedDB) trace(kind, query string, args []any) func(error) {
	start := time.Now()
	return func(err error) {
		took := time.Since(start)
		fields := []any{"kind", kind, "query", strings.Join(strings.Fields(query), " "), "args", args, "took", took}
		switch {
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			t.logger.Debugw("statement failed", append(fields, "error", err)...)
		case took > slowStatement:
			t.logger.Warnw("slow statement", fields...)
		default:
			t.logger.Debugw("statement", fields...)
		}
	}
}
