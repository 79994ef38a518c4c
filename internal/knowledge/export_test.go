package knowledge

import (
	"database/sql"
	"time"
)

// DB exposes the internal *sql.DB for test helpers in knowledge_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FailExec makes every subsequent write fail with err.
func (s *Store) FailExec(err error) {
	s.hooks.exec = func(db execer, query string, args ...any) (sql.Result, error) {
		return nil, err
	}
}

// FailQuery makes every subsequent hooked read fail with err.
func (s *Store) FailQuery(err error) {
	s.hooks.query = func(db queryer, query string, args ...any) (*sql.Rows, error) {
		return nil, err
	}
}

// FailBegin makes every subsequent transaction fail to start with err.
func (s *Store) FailBegin(err error) {
	s.hooks.beginTx = func(db *sql.DB) (*sql.Tx, error) {
		return nil, err
	}
}

// TrackQueries records, for every subsequent hooked read, whether it ran
// inside a transaction.
func (s *Store) TrackQueries() *[]bool {
	var inTx []bool
	s.hooks.query = func(db queryer, query string, args ...any) (*sql.Rows, error) {
		_, ok := db.(*sql.Tx)
		inTx = append(inTx, ok)
		return db.Query(query, args...)
	}
	return &inTx
}

// SetClock replaces the package clock and returns a restore func.
func SetClock(now func() time.Time) func() {
	prev := timeNow
	timeNow = now
	return func() { timeNow = prev }
}
