package domain

import "time"

type Room struct {
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}
