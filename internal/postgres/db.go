package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate creates the schema when it does not exist yet. There is no
// FK from messages to rooms: a share may reference a room that was
// never created (accepted behavior, not validated on write).
func (db *DB) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS rooms (
			code       text PRIMARY KEY,
			created_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS room_members (
			socket_id text PRIMARY KEY,
			room_code text NOT NULL,
			name      text,
			joined_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS messages (
			id        uuid PRIMARY KEY,
			room_code text NOT NULL,
			video_url text NOT NULL,
			title     text NOT NULL DEFAULT '',
			comment   text NOT NULL DEFAULT '',
			ts        timestamptz NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS messages_room_ts_idx ON messages (room_code, ts DESC);
	`
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
