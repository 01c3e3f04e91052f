package http

import "github.com/yshare/yshare/internal/domain"

type JoinRoomRequest struct {
	Code string `json:"code"`
}

type ShareRequest struct {
	RoomCode  string `json:"roomCode"`
	VideoURL  string `json:"videoUrl"`
	Title     string `json:"title,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

type RoomResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
}

type ShareResponse struct {
	Success bool            `json:"success"`
	Message *domain.Message `json:"message"`
}

type HistoryResponse struct {
	Success  bool             `json:"success"`
	Messages []domain.Message `json:"messages"`
}

type FailureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
