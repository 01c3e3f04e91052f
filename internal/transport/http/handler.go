package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yshare/yshare/internal/domain"

	"github.com/go-chi/chi/v5"
)

type RoomSvc interface {
	CreateRoom(ctx context.Context) (*domain.Room, error)
	JoinRoom(ctx context.Context, code string) (*domain.Room, error)
	ShareVideo(ctx context.Context, share domain.Share) (*domain.Message, error)
	History(ctx context.Context, roomCode string) ([]domain.Message, error)
}

type Handler struct {
	roomSvc RoomSvc
}

func NewHandler(room RoomSvc) *Handler {
	return &Handler{roomSvc: room}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /room/create
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomSvc.CreateRoom(r.Context())
	if err != nil {
		slog.Error("handler.CreateRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, FailureResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, RoomResponse{Success: true, Code: room.Code})
}

// POST /room/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, FailureResponse{Message: "invalid json"})
		return
	}

	room, err := h.roomSvc.JoinRoom(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, FailureResponse{Message: "Room not found"})
			return
		}
		slog.Error("handler.JoinRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, FailureResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, RoomResponse{Success: true, Code: room.Code})
}

// POST /share
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, FailureResponse{Message: "invalid json"})
		return
	}

	share := domain.Share{
		RoomCode: req.RoomCode,
		VideoURL: req.VideoURL,
		Title:    req.Title,
		Comment:  req.Comment,
	}
	if req.Timestamp != nil {
		ts := time.Unix(*req.Timestamp, 0)
		share.Timestamp = &ts
	}

	msg, err := h.roomSvc.ShareVideo(r.Context(), share)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidShare) {
			writeJSON(w, http.StatusBadRequest, FailureResponse{Message: "Missing required fields"})
			return
		}
		slog.Error("handler.Share:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, FailureResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ShareResponse{Success: true, Message: msg})
}

// GET /history/{roomCode}
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "roomCode")

	messages, err := h.roomSvc.History(r.Context(), roomCode)
	if err != nil {
		slog.Error("handler.History:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, FailureResponse{Error: err.Error()})
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Success: true, Messages: messages})
}
