package recordstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps all collections in a single records table, for
// operators who want the pipeline's state in a shared database instead of
// files on the render host.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      JSONB NOT NULL,
			PRIMARY KEY (collection, key)
		)`,
	)
	if err != nil {
		return fmt.Errorf("postgres: init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("postgres: marshal %s/%s: %w", collection, key, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (collection, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key) DO UPDATE SET value=EXCLUDED.value`,
		collection, key, data,
	)
	if err != nil {
		return fmt.Errorf("postgres: put %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string, out any) error {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM records WHERE collection=$1 AND key=$2`,
		collection, key,
	).Scan(&data)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: get %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("postgres: unmarshal %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM records WHERE collection=$1 AND key=$2`,
		collection, key,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM records WHERE collection=$1`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", collection, err)
		}
		out[key] = json.RawMessage(data)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
