package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yshare/yshare/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type RoomSvc interface {
	ShareVideo(ctx context.Context, share domain.Share) (*domain.Message, error)
}

type MemberSvc interface {
	Add(ctx context.Context, m *domain.Member) error
	Remove(ctx context.Context, socketID string) error
	CountInRoom(ctx context.Context, roomCode string) (int, error)
}

type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	roomSvc   RoomSvc
	memberSvc MemberSvc

	pingEvery time.Duration
}

func NewServer(hub *Hub, room RoomSvc, member MemberSvc) *Server {
	return &Server{
		hub:       hub,
		roomSvc:   room,
		memberSvc: member,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uuid.NewString())
	slog.Info("ws connected", "socket", c.socketID)

	go s.writeLoop(c)
	s.readLoop(r.Context(), c)

	s.hub.Remove(c)
	if err := s.memberSvc.Remove(context.Background(), c.socketID); err != nil {
		slog.Debug("ws member remove failed", "socket", c.socketID, "err", err)
	}
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "socket", c.socketID, "err", err)
	}
	slog.Info("ws disconnected", "socket", c.socketID)
}

// NotifyShare delivers a stored message to every connection in its
// room. This is the change-notifier's entry point into the hub.
func (s *Server) NotifyShare(m domain.Message) {
	s.hub.Broadcast(m.RoomCode, Message{
		Type: TypeNewShare,
		Payload: NewSharePayload{
			ID:        m.ID,
			RoomCode:  m.RoomCode,
			VideoURL:  m.VideoURL,
			Title:     m.Title,
			Comment:   m.Comment,
			Timestamp: m.Timestamp.Unix(),
		},
	})
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case TypeJoinRoom:
			s.handleJoin(ctx, c, msg.Payload)
		case TypeShareVideo:
			s.handleShare(ctx, c, msg.Payload)
		default:
			// ignore
		}
	}
}

func (s *Server) handleJoin(ctx context.Context, c *wsConn, payload interface{}) {
	var roomCode string
	if decode(payload, &roomCode) != nil || roomCode == "" {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: "invalid room code"}})
		return
	}

	s.hub.Join(c, roomCode)
	if err := s.memberSvc.Add(ctx, &domain.Member{SocketID: c.socketID, RoomCode: roomCode}); err != nil {
		slog.Warn("ws member add failed", "socket", c.socketID, "room", roomCode, "err", err)
	}
	members, err := s.memberSvc.CountInRoom(ctx, roomCode)
	if err != nil {
		slog.Warn("ws member count failed", "room", roomCode, "err", err)
	}
	slog.Info("ws joined room", "socket", c.socketID, "room", roomCode, "members", members)

	_ = c.Send(Message{Type: TypeJoined, Payload: JoinedPayload{RoomCode: roomCode, Members: members}})
}

func (s *Server) handleShare(ctx context.Context, c *wsConn, payload interface{}) {
	var p SharePayload
	if decode(payload, &p) != nil {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: "invalid share payload"}})
		return
	}

	share := domain.Share{
		RoomCode: p.RoomCode,
		VideoURL: p.VideoURL,
		Title:    p.Title,
		Comment:  p.Comment,
	}
	if p.Timestamp != nil {
		ts := time.Unix(*p.Timestamp, 0)
		share.Timestamp = &ts
	}

	// Broadcast to peers happens through the change notifier once the
	// write lands; nothing to do here on success.
	_, err := s.roomSvc.ShareVideo(ctx, share)
	if err == nil {
		return
	}

	if errors.Is(err, domain.ErrInvalidShare) {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: err.Error()}})
		return
	}

	// Storage failed. Deliver directly to the room, skipping the
	// sender, so peers still see the share even though it was never
	// recorded.
	slog.Error("ws share save failed, broadcasting directly", "socket", c.socketID, "room", p.RoomCode, "err", err)
	ts := time.Now()
	if share.Timestamp != nil {
		ts = *share.Timestamp
	}
	s.hub.BroadcastExcept(p.RoomCode, Message{
		Type: TypeNewShare,
		Payload: NewSharePayload{
			ID:        uuid.NewString(),
			RoomCode:  p.RoomCode,
			VideoURL:  p.VideoURL,
			Title:     p.Title,
			Comment:   p.Comment,
			Timestamp: ts.Unix(),
		},
	}, c)
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn     *websocket.Conn
	socketID string
	sendMu   chan struct{}
	closed   chan struct{}
}

func newWsConn(c *websocket.Conn, socketID string) *wsConn {
	return &wsConn{
		conn:     c,
		socketID: socketID,
		sendMu:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) SocketID() string { return c.socketID }
