package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yshare/yshare/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomRepo struct {
	rooms      map[string]*domain.Room
	existsErr  error
	alwaysSeen bool
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string]*domain.Room)}
}

func (f *fakeRoomRepo) Create(_ context.Context, room *domain.Room) error {
	room.CreatedAt = time.Now()
	f.rooms[room.Code] = room
	return nil
}

func (f *fakeRoomRepo) Get(_ context.Context, code string) (*domain.Room, error) {
	if r, ok := f.rooms[code]; ok {
		return r, nil
	}
	return nil, domain.ErrRoomNotFound
}

func (f *fakeRoomRepo) Exists(_ context.Context, code string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.alwaysSeen {
		return true, nil
	}
	_, ok := f.rooms[code]
	return ok, nil
}

type fakeMessageRepo struct {
	saved   []domain.Message
	saveErr error
	history []domain.Message
	gotLim  int
}

func (f *fakeMessageRepo) Save(_ context.Context, m *domain.Message) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *m)
	return nil
}

func (f *fakeMessageRepo) History(_ context.Context, _ string, limit int) ([]domain.Message, error) {
	f.gotLim = limit
	return f.history, nil
}

func TestCreateRoomCode(t *testing.T) {
	svc := NewRoomService(newFakeRoomRepo(), &fakeMessageRepo{})

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		room, err := svc.CreateRoom(context.Background())
		require.NoError(t, err)
		assert.Len(t, room.Code, 6)
		for _, ch := range room.Code {
			assert.Contains(t, codeChars, string(ch))
		}
		_, dup := seen[room.Code]
		assert.False(t, dup, "code %s generated twice", room.Code)
		seen[room.Code] = struct{}{}
	}
}

func TestCreateRoomExhaustsAttempts(t *testing.T) {
	repo := newFakeRoomRepo()
	repo.alwaysSeen = true
	svc := NewRoomService(repo, &fakeMessageRepo{})

	_, err := svc.CreateRoom(context.Background())
	assert.ErrorIs(t, err, domain.ErrCodeSpaceExhausted)
}

func TestCreateRoomStorageError(t *testing.T) {
	repo := newFakeRoomRepo()
	repo.existsErr = errors.New("db down")
	svc := NewRoomService(repo, &fakeMessageRepo{})

	_, err := svc.CreateRoom(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCodeSpaceExhausted)
}

func TestJoinRoom(t *testing.T) {
	repo := newFakeRoomRepo()
	repo.rooms["ABC123"] = &domain.Room{Code: "ABC123"}
	svc := NewRoomService(repo, &fakeMessageRepo{})

	room, err := svc.JoinRoom(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", room.Code)

	_, err = svc.JoinRoom(context.Background(), "NOPE99")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestShareVideoValidation(t *testing.T) {
	msgRepo := &fakeMessageRepo{}
	svc := NewRoomService(newFakeRoomRepo(), msgRepo)

	tests := []struct {
		name  string
		share domain.Share
	}{
		{"missing room code", domain.Share{VideoURL: "http://x/1"}},
		{"missing video url", domain.Share{RoomCode: "ABC123"}},
		{"both missing", domain.Share{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ShareVideo(context.Background(), tt.share)
			assert.ErrorIs(t, err, domain.ErrInvalidShare)
			assert.Empty(t, msgRepo.saved, "invalid share must not write")
		})
	}
}

func TestShareVideo(t *testing.T) {
	msgRepo := &fakeMessageRepo{}
	svc := NewRoomService(newFakeRoomRepo(), msgRepo)

	msg, err := svc.ShareVideo(context.Background(), domain.Share{
		RoomCode: "ABC123",
		VideoURL: "http://x/1",
		Title:    "T",
		Comment:  "c",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "ABC123", msg.RoomCode)
	assert.Equal(t, "http://x/1", msg.VideoURL)
	assert.False(t, msg.Timestamp.IsZero())
	require.Len(t, msgRepo.saved, 1)
}

func TestShareVideoKeepsCallerTimestamp(t *testing.T) {
	msgRepo := &fakeMessageRepo{}
	svc := NewRoomService(newFakeRoomRepo(), msgRepo)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := svc.ShareVideo(context.Background(), domain.Share{
		RoomCode:  "ABC123",
		VideoURL:  "http://x/1",
		Timestamp: &ts,
	})
	require.NoError(t, err)
	assert.True(t, msg.Timestamp.Equal(ts))
}

func TestHistoryLimit(t *testing.T) {
	msgRepo := &fakeMessageRepo{history: []domain.Message{
		{ID: "1", Timestamp: time.Unix(300, 0)},
		{ID: "2", Timestamp: time.Unix(200, 0)},
		{ID: "3", Timestamp: time.Unix(100, 0)},
	}}
	svc := NewRoomService(newFakeRoomRepo(), msgRepo)

	msgs, err := svc.History(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 50, msgRepo.gotLim)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp),
			"history must be non-increasing by timestamp")
	}
}
