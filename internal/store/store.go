// Package store keeps a SQLite history of decoded transmissions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/geal-ai/bitspacket"
)

// ErrNotFound is returned by Lookup when a transmission was never recorded.
var ErrNotFound = errors.New("transmission not recorded")

const schema = `
CREATE TABLE IF NOT EXISTS decodes (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	input       TEXT NOT NULL,
	version_sum INTEGER NOT NULL,
	value       TEXT NOT NULL,
	expression  TEXT NOT NULL,
	error       TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS decodes_input ON decodes (input, created_at);
`

// Entry is one recorded decode. Value is a decimal string; Error is empty
// for successful decodes.
type Entry struct {
	ID         string
	Source     string
	Input      string
	VersionSum int
	Value      string
	Expression string
	Error      string
	CreatedAt  time.Time
}

// EntryFor builds an Entry from a decode result.
func EntryFor(source, input string, p *bitspacket.Packet, err error) Entry {
	e := Entry{Source: source, Input: input}
	if err != nil {
		e.Error = err.Error()
		return e
	}
	e.VersionSum = p.VersionSum()
	e.Value = p.Value().String()
	e.Expression = p.String()
	return e
}

// Store is a decode history backed by SQLite.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
// ":memory:" gives a private in-memory database.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: SQLite serialises writers anyway and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	log.Debug("history store opened", zap.String("path", path))
	return &Store{db: db, log: log, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores e, assigning its ID and CreatedAt, and returns the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decodes (id, source, input, version_sum, value, expression, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.Input, e.VersionSum, e.Value, e.Expression, e.Error, e.CreatedAt.UnixNano())
	if err != nil {
		return Entry{}, fmt.Errorf("record decode: %w", err)
	}
	s.log.Debug("recorded decode", zap.String("id", e.ID), zap.String("source", e.Source))
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, input, version_sum, value, expression, error, created_at
		 FROM decodes ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return entries, nil
}

// Lookup returns the most recent entry recorded for input.
func (s *Store) Lookup(ctx context.Context, input string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, input, version_sum, value, expression, error, created_at
		 FROM decodes WHERE input = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, input)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var created int64
	err := sc.Scan(&e.ID, &e.Source, &e.Input, &e.VersionSum, &e.Value, &e.Expression, &e.Error, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan history row: %w", err)
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	return e, nil
}
