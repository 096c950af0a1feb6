package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

const inMemory = ":memory:"

// NewDB opens the DuckDB ledger at path, creating its folder if needed. An
// empty path or ":memory:" opens a private in-memory ledger.
func NewDB(path string) (*sql.DB, error) {
	dsn := inMemory
	if path != "" && path != inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger folder: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", dsn, err)
	}
	// DuckDB allows a single writer; concurrent waits share this connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening ledger %s: %w", dsn, err)
	}

	if dsn != inMemory {
		// keep extensions next to the ledger rather than in ~/.duckdb
		dir := strings.ReplaceAll(filepath.Dir(dsn), "'", "''")
		if _, err := db.Exec(fmt.Sprintf("SET extension_directory = '%s'", dir)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting extension directory: %w", err)
		}
	}
	return db, nil
}
