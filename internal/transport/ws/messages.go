package ws

// Event types carried in the envelope
const (
	TypeJoinRoom   = "join_room"   // client -> server, payload: room code string
	TypeShareVideo = "share_video" // client -> server, payload: SharePayload
	TypeNewShare   = "new_share"   // server -> client, payload: NewSharePayload
	TypeJoined     = "joined"      // server -> client, join ack
	TypeError      = "error"       // server -> client
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type SharePayload struct {
	RoomCode  string `json:"roomCode"`
	VideoURL  string `json:"videoUrl"`
	Title     string `json:"title,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"` // unix seconds, defaults to server time
}

// NewSharePayload is what peers receive. ID lets a client deduplicate
// when the durable and fallback delivery paths both fire.
type NewSharePayload struct {
	ID        string `json:"id"`
	RoomCode  string `json:"roomCode"`
	VideoURL  string `json:"videoUrl"`
	Title     string `json:"title,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// JoinedPayload acknowledges a join; Members counts the room's
// registered connections, the joiner included.
type JoinedPayload struct {
	RoomCode string `json:"roomCode"`
	Members  int    `json:"members"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
