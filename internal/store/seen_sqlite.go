package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"jobwatch-engine/internal/seen"
)

// SQLiteSeenStore keeps the seen set in the seen table, one row per
// identifier. It satisfies seen.Store.
type SQLiteSeenStore struct {
	db        *DB
	retention time.Duration
	now       func() time.Time
}

func NewSQLiteSeenStore(db *DB, retention time.Duration, now func() time.Time) *SQLiteSeenStore {
	if retention <= 0 {
		retention = seen.DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &SQLiteSeenStore{db: db, retention: retention, now: now}
}

func (s *SQLiteSeenStore) Load(ctx context.Context) (*seen.Set, error) {
	rows, err := s.db.Pool.QueryContext(ctx, `SELECT id, first_seen FROM seen;`)
	if err != nil {
		return nil, fmt.Errorf("seen sqlite: query: %w", err)
	}
	defer rows.Close()

	today := seen.Today(s.now())
	set := seen.NewSet()
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("seen sqlite: scan: %w", err)
		}
		day, ok := seen.ParseDate(raw)
		if !ok {
			day = today
		}
		set.MarkIfNew(id, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seen sqlite: rows: %w", err)
	}

	pruned := set.Prune(today, s.retention)
	log.Printf("[seen] loaded backend=sqlite entries=%d pruned=%d", set.Len(), pruned)
	return set, nil
}

// Save replaces the table content with set in one transaction.
func (s *SQLiteSeenStore) Save(ctx context.Context, set *seen.Set) error {
	tx, err := s.db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seen sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen;`); err != nil {
		return fmt.Errorf("seen sqlite: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO seen(id, first_seen) VALUES(?, ?);`)
	if err != nil {
		return fmt.Errorf("seen sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for id, day := range set.Encode() {
		if _, err := stmt.ExecContext(ctx, id, day); err != nil {
			return fmt.Errorf("seen sqlite: insert %q: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteSeenStore) Close() error {
	return s.db.Close()
}
