package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/yshare/yshare/internal/domain"

	"github.com/google/uuid"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Bound on the generate-and-check loop. 36^6 codes make a collision
	// streak of this length effectively impossible; hitting the cap
	// means something is wrong with the store, not bad luck.
	maxCodeAttempts = 10

	historyLimit = 50
)

type RoomRepo interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, code string) (*domain.Room, error)
	Exists(ctx context.Context, code string) (bool, error)
}

type MessageRepo interface {
	Save(ctx context.Context, m *domain.Message) error
	History(ctx context.Context, roomCode string, limit int) ([]domain.Message, error)
}

type RoomService struct {
	roomRepo    RoomRepo
	messageRepo MessageRepo
}

func NewRoomService(roomRepo RoomRepo, messageRepo MessageRepo) *RoomService {
	return &RoomService{roomRepo: roomRepo, messageRepo: messageRepo}
}

// CreateRoom generates a unique 6-character code and persists the room.
func (s *RoomService) CreateRoom(ctx context.Context) (*domain.Room, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		exists, err := s.roomRepo.Exists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check code: %w", err)
		}
		if exists {
			continue
		}
		room := &domain.Room{Code: code}
		if err := s.roomRepo.Create(ctx, room); err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		return room, nil
	}
	return nil, domain.ErrCodeSpaceExhausted
}

// JoinRoom validates that the room exists. Registering the connection
// itself is the realtime layer's job.
func (s *RoomService) JoinRoom(ctx context.Context, code string) (*domain.Room, error) {
	return s.roomRepo.Get(ctx, code)
}

// ShareVideo persists one shared video. The room is not required to
// exist; a message may be orphaned.
func (s *RoomService) ShareVideo(ctx context.Context, share domain.Share) (*domain.Message, error) {
	if share.RoomCode == "" || share.VideoURL == "" {
		return nil, domain.ErrInvalidShare
	}

	ts := time.Now()
	if share.Timestamp != nil {
		ts = *share.Timestamp
	}
	m := &domain.Message{
		ID:        uuid.NewString(),
		RoomCode:  share.RoomCode,
		VideoURL:  share.VideoURL,
		Title:     share.Title,
		Comment:   share.Comment,
		Timestamp: ts,
	}
	if err := s.messageRepo.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	return m, nil
}

// History returns up to 50 messages for the room, newest first.
func (s *RoomService) History(ctx context.Context, roomCode string) ([]domain.Message, error) {
	return s.messageRepo.History(ctx, roomCode, historyLimit)
}

func randomCode() (string, error) {
	b := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeChars[n.Int64()]
	}
	return string(b), nil
}
