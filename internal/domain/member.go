package domain

import "time"

// Member ties a live connection (by socket id) to the room it joined.
// Rows are created on join_room and removed when the connection drops.
type Member struct {
	SocketID string    `db:"socket_id"`
	RoomCode string    `db:"room_code"`
	Name     *string   `db:"name"`
	JoinedAt time.Time `db:"joined_at"`
}
