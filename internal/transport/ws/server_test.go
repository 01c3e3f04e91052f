package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yshare/yshare/internal/domain"
	"github.com/yshare/yshare/internal/notifier"
	"github.com/yshare/yshare/pkg/msgbroker"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBroker delivers published messages straight to the subscriber,
// standing in for Redis pub/sub.
type memBroker struct {
	handlers map[string]msgbroker.MessageHandler
}

func newMemBroker() *memBroker {
	return &memBroker{handlers: make(map[string]msgbroker.MessageHandler)}
}

func (b *memBroker) Publish(msg []byte, channel string) error {
	for pattern, cb := range b.handlers {
		if matchPattern(pattern, channel) {
			cb(&msgbroker.Message{Channel: channel, Data: msg})
		}
	}
	return nil
}

func (b *memBroker) Subscribe(pattern string, cb msgbroker.MessageHandler) error {
	b.handlers[pattern] = cb
	return nil
}

func (b *memBroker) Unsubscribe(patterns ...string) error {
	for _, p := range patterns {
		delete(b.handlers, p)
	}
	return nil
}

func (b *memBroker) Close() error { return nil }

func matchPattern(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

// stubRoomSvc persists through the broker like the real repository
// does, or fails on demand.
type stubRoomSvc struct {
	broker msgbroker.MessageBroker
	fail   bool

	mu    sync.Mutex
	saved []domain.Message
}

func (s *stubRoomSvc) ShareVideo(_ context.Context, share domain.Share) (*domain.Message, error) {
	if share.RoomCode == "" || share.VideoURL == "" {
		return nil, domain.ErrInvalidShare
	}
	if s.fail {
		return nil, assert.AnError
	}
	ts := time.Now()
	if share.Timestamp != nil {
		ts = *share.Timestamp
	}
	m := domain.Message{
		ID:        uuid.NewString(),
		RoomCode:  share.RoomCode,
		VideoURL:  share.VideoURL,
		Title:     share.Title,
		Comment:   share.Comment,
		Timestamp: ts,
	}
	s.mu.Lock()
	s.saved = append(s.saved, m)
	s.mu.Unlock()
	data, _ := json.Marshal(m)
	_ = s.broker.Publish(data, notifier.ShareChannel(m.RoomCode))
	return &m, nil
}

func (s *stubRoomSvc) savedMessages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.saved...)
}

// stubMemberSvc tracks live memberships the way the postgres repo
// does, keyed by socket id.
type stubMemberSvc struct {
	mu      sync.Mutex
	members map[string]string // socketID -> roomCode
}

func newStubMemberSvc() *stubMemberSvc {
	return &stubMemberSvc{members: make(map[string]string)}
}

func (s *stubMemberSvc) Add(_ context.Context, m *domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.SocketID] = m.RoomCode
	return nil
}

func (s *stubMemberSvc) Remove(_ context.Context, socketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, socketID)
	return nil
}

func (s *stubMemberSvc) CountInRoom(_ context.Context, roomCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, room := range s.members {
		if room == roomCode {
			n++
		}
	}
	return n, nil
}

func newTestSetup(t *testing.T) (*stubRoomSvc, *httptest.Server) {
	t.Helper()

	broker := newMemBroker()
	roomSvc := &stubRoomSvc{broker: broker}

	hub := NewHub()
	server := NewServer(hub, roomSvc, newStubMemberSvc())

	ntf := notifier.New(broker, server, 2)
	require.NoError(t, ntf.Run())
	t.Cleanup(ntf.Close)

	ts := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	t.Cleanup(ts.Close)
	return roomSvc, ts
}

func dialAndJoin(t *testing.T, ts *httptest.Server, roomCode string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(Message{Type: TypeJoinRoom, Payload: roomCode}))

	msg := readEvent(t, conn, TypeJoined, 2*time.Second)
	var joined JoinedPayload
	require.NoError(t, decode(msg.Payload, &joined))
	require.Equal(t, roomCode, joined.RoomCode)
	return conn
}

// readEvent reads frames until one of the wanted type arrives.
func readEvent(t *testing.T, conn *websocket.Conn, wantType string, timeout time.Duration) Message {
	t.Helper()

	deadline := time.Now().Add(timeout)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		require.NoError(t, err, "waiting for %q event", wantType)
		if msg.Type == wantType {
			return msg
		}
	}
}

func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	var msg Message
	err := conn.ReadJSON(&msg)
	require.Error(t, err, "expected no event, got %q", msg.Type)
}

func TestShareReachesPeers(t *testing.T) {
	_, ts := newTestSetup(t)

	a := dialAndJoin(t, ts, "ABC123")
	b := dialAndJoin(t, ts, "ABC123")

	require.NoError(t, a.WriteJSON(Message{
		Type: TypeShareVideo,
		Payload: SharePayload{
			RoomCode: "ABC123",
			VideoURL: "http://x/1",
			Title:    "T",
			Comment:  "c",
		},
	}))

	msg := readEvent(t, b, TypeNewShare, 2*time.Second)
	var p NewSharePayload
	require.NoError(t, decode(msg.Payload, &p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "ABC123", p.RoomCode)
	assert.Equal(t, "http://x/1", p.VideoURL)
	assert.Equal(t, "T", p.Title)
	assert.Equal(t, "c", p.Comment)
	assert.NotZero(t, p.Timestamp)
}

func TestShareDoesNotLeakAcrossRooms(t *testing.T) {
	_, ts := newTestSetup(t)

	a := dialAndJoin(t, ts, "ABC123")
	other := dialAndJoin(t, ts, "ZZZ999")

	require.NoError(t, a.WriteJSON(Message{
		Type:    TypeShareVideo,
		Payload: SharePayload{RoomCode: "ABC123", VideoURL: "http://x/1"},
	}))

	expectSilence(t, other, 500*time.Millisecond)
}

func TestShareStorageFailureFallsBack(t *testing.T) {
	roomSvc, ts := newTestSetup(t)
	roomSvc.fail = true

	a := dialAndJoin(t, ts, "ABC123")
	b := dialAndJoin(t, ts, "ABC123")

	require.NoError(t, a.WriteJSON(Message{
		Type:    TypeShareVideo,
		Payload: SharePayload{RoomCode: "ABC123", VideoURL: "http://x/1", Title: "T"},
	}))

	// peers still get the share directly
	msg := readEvent(t, b, TypeNewShare, 2*time.Second)
	var p NewSharePayload
	require.NoError(t, decode(msg.Payload, &p))
	assert.NotEmpty(t, p.ID, "fallback shares carry an id too")
	assert.Equal(t, "http://x/1", p.VideoURL)

	// the sender is excluded, and nothing was stored
	expectSilence(t, a, 500*time.Millisecond)
	assert.Empty(t, roomSvc.savedMessages())
}

func TestInvalidShareRejected(t *testing.T) {
	roomSvc, ts := newTestSetup(t)

	a := dialAndJoin(t, ts, "ABC123")
	b := dialAndJoin(t, ts, "ABC123")

	require.NoError(t, a.WriteJSON(Message{
		Type:    TypeShareVideo,
		Payload: SharePayload{RoomCode: "ABC123"}, // no videoUrl
	}))

	msg := readEvent(t, a, TypeError, 2*time.Second)
	var p ErrorPayload
	require.NoError(t, decode(msg.Payload, &p))
	assert.NotEmpty(t, p.Message)

	expectSilence(t, b, 500*time.Millisecond)
	assert.Empty(t, roomSvc.savedMessages())
}

func TestJoinedAckReportsMembers(t *testing.T) {
	_, ts := newTestSetup(t)

	join := func(conn *websocket.Conn) JoinedPayload {
		require.NoError(t, conn.WriteJSON(Message{Type: TypeJoinRoom, Payload: "ABC123"}))
		msg := readEvent(t, conn, TypeJoined, 2*time.Second)
		var p JoinedPayload
		require.NoError(t, decode(msg.Payload, &p))
		return p
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	a, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Equal(t, 1, join(a).Members)

	b, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, 2, join(b).Members)
}
