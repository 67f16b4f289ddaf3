package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps all collections in a single records table of an
// embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// The record store is only ever written by the single orchestrator
	// path, but the driver still needs a serialized connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      BLOB NOT NULL,
			PRIMARY KEY (collection, key)
		);`,
	)
	if err != nil {
		return fmt.Errorf("sqlite: init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlite: marshal %s/%s: %w", collection, key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (collection, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET value=excluded.value`,
		collection, key, data,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string, out any) error {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE collection=? AND key=?`,
		collection, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlite: get %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("sqlite: unmarshal %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection=? AND key=?`,
		collection, key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM records WHERE collection=?`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", collection, err)
		}
		out[key] = json.RawMessage(data)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
