package store

import "database/sql"

// Store provides access to the ledger repositories.
type Store struct {
	db           *sql.DB
	observations *ObservationStore
	runs         *RunStore
}

func NewStore(db *sql.DB) *Store {
	qi := newTracedDB(db)
	return &Store{
		db:           db,
		observations: NewObservationStore(qi),
		runs:         NewRunStore(qi),
	}
}

func (s *Store) Observations() *ObservationStore {
	return s.observations
}

func (s *Store) Runs() *RunStore {
	return s.runs
}

func (s *Store) Close() error {
	return s.db.Close()
}
