package postgres

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/yshare/yshare/internal/domain"
	"github.com/yshare/yshare/internal/notifier"
	"github.com/yshare/yshare/pkg/msgbroker"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db     *pgxpool.Pool
	broker msgbroker.MessageBroker
}

func NewMessageRepository(db *pgxpool.Pool, broker msgbroker.MessageBroker) *MessageRepository {
	return &MessageRepository{db: db, broker: broker}
}

// Save inserts the message and publishes the stored row as a share
// event. Publishing happens here, at the store, so every writer (HTTP
// or realtime) produces the same insert event. Publish failures are
// logged, not returned: the durable write already stands.
func (r *MessageRepository) Save(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages (id, room_code, video_url, title, comment, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ts`
	err := r.db.QueryRow(ctx, query,
		m.ID, m.RoomCode, m.VideoURL, m.Title, m.Comment, m.Timestamp).Scan(&m.Timestamp)
	if err != nil {
		return err
	}

	if data, err := json.Marshal(m); err != nil {
		slog.Error("message repo: marshal share event", "id", m.ID, "err", err)
	} else if err := r.broker.Publish(data, notifier.ShareChannel(m.RoomCode)); err != nil {
		slog.Error("message repo: publish share event", "id", m.ID, "err", err)
	}
	return nil
}

// History returns the room's most recent messages, newest first.
func (r *MessageRepository) History(ctx context.Context, roomCode string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	query := `
		SELECT id, room_code, video_url, title, comment, ts
		FROM messages
		WHERE room_code = $1
		ORDER BY ts DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, roomCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RoomCode, &m.VideoURL, &m.Title, &m.Comment, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
