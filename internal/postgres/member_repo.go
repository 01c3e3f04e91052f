package postgres

import (
	"context"

	"github.com/yshare/yshare/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MemberRepository struct {
	db *pgxpool.Pool
}

func NewMemberRepository(db *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{db: db}
}

// Add registers a connection in a room. A connection joining a second
// room replaces its previous membership (one room per socket).
func (r *MemberRepository) Add(ctx context.Context, m *domain.Member) error {
	query := `
		INSERT INTO room_members (socket_id, room_code, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (socket_id) DO UPDATE SET room_code = EXCLUDED.room_code
		RETURNING joined_at`
	return r.db.QueryRow(ctx, query, m.SocketID, m.RoomCode, m.Name).Scan(&m.JoinedAt)
}

func (r *MemberRepository) Remove(ctx context.Context, socketID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM room_members WHERE socket_id=$1`, socketID)
	return err
}

func (r *MemberRepository) CountInRoom(ctx context.Context, roomCode string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM room_members WHERE room_code=$1`, roomCode).Scan(&count)
	return count, err
}
