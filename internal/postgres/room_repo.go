package postgres

import (
	"context"
	"errors"

	"github.com/yshare/yshare/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (code)
		VALUES ($1)
		RETURNING created_at`
	return r.db.QueryRow(ctx, query, room.Code).Scan(&room.CreatedAt)
}

func (r *RoomRepository) Get(ctx context.Context, code string) (*domain.Room, error) {
	var rm domain.Room
	query := `SELECT code, created_at FROM rooms WHERE code=$1`
	err := r.db.QueryRow(ctx, query, code).Scan(&rm.Code, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

func (r *RoomRepository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM rooms WHERE code=$1)`, code).Scan(&exists)
	return exists, err
}
