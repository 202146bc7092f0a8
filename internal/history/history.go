// Package history keeps a sqlite journal of assistant turns.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"voxloop/internal/turn"
)

type DB struct{ *sql.DB }

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			transcript TEXT NOT NULL,
			reply TEXT NOT NULL,
			intent TEXT NOT NULL,
			failure TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_intent ON turns(intent);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (db *DB) Record(ctx context.Context, rec turn.Record) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO turns(id, started_at, transcript, reply, intent, failure) VALUES(?,?,?,?,?,?)`,
		rec.ID, rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.Transcript, rec.Reply, rec.Intent, rec.Failure)
	return err
}

// Recent returns up to n turns, newest first.
func (db *DB) Recent(ctx context.Context, n int) ([]turn.Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, started_at, transcript, reply, intent, failure FROM turns ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []turn.Record
	for rows.Next() {
		var rec turn.Record
		var at string
		if err := rows.Scan(&rec.ID, &at, &rec.Transcript, &rec.Reply, &rec.Intent, &rec.Failure); err != nil {
			return nil, err
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("turn %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
