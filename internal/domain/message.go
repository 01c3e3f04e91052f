package domain

import "time"

// Message is one shared video. Immutable once stored. The ID doubles as
// the idempotency key clients use to deduplicate deliveries.
type Message struct {
	ID        string    `db:"id" json:"id"`
	RoomCode  string    `db:"room_code" json:"roomCode"`
	VideoURL  string    `db:"video_url" json:"videoUrl"`
	Title     string    `db:"title" json:"title,omitempty"`
	Comment   string    `db:"comment" json:"comment,omitempty"`
	Timestamp time.Time `db:"ts" json:"timestamp"`
}

// Share is the caller-supplied part of a Message.
type Share struct {
	RoomCode  string     `json:"roomCode"`
	VideoURL  string     `json:"videoUrl"`
	Title     string     `json:"title,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}
