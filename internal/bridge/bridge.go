package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yshare/yshare/internal/domain"
	"github.com/yshare/yshare/internal/transport/ws"

	"github.com/gorilla/websocket"
)

// Bridge is the device-local side of the system: it keeps at most one
// realtime connection to the backend, forwards locally-originated
// shares, and caches everything it sends or receives.
type Bridge struct {
	store      *Store
	notifier   Notifier
	backendURL string
	httpClient *http.Client
	dialer     *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	wmu  sync.Mutex // serializes writes on conn

	seen       *idSet
	selfMu     sync.Mutex
	recentSelf map[string]time.Time
}

// selfEchoWindow suppresses the server echoing our own share back to
// us on the durable broadcast path.
const selfEchoWindow = 10 * time.Second

func New(store *Store, notifier Notifier, backendURL string) *Bridge {
	if u := store.BackendURL(); u != "" {
		backendURL = u
	}
	return &Bridge{
		store:      store,
		notifier:   notifier,
		backendURL: backendURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		seen:       newIDSet(256),
		recentSelf: make(map[string]time.Time),
	}
}

// Start reconnects to the previously joined room, if any.
func (b *Bridge) Start() error {
	code := b.store.RoomCode()
	if code == "" {
		return nil
	}
	if err := b.connect(); err != nil {
		return err
	}
	return b.emitJoin(code)
}

func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// CreateRoom asks the backend for a fresh room and returns its code.
func (b *Bridge) CreateRoom(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.backendURL+"/api/room/create", bytes.NewReader(nil))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	if !body.Success {
		return "", fmt.Errorf("create room: %s", body.Error)
	}
	return body.Code, nil
}

// Join validates the code against the backend, then joins over the
// realtime connection, dialing first when there is none yet.
func (b *Bridge) Join(ctx context.Context, code string) error {
	if err := b.validateRoom(ctx, code); err != nil {
		return err
	}
	if !b.Connected() {
		if err := b.connect(); err != nil {
			slog.Error("bridge: connect failed", "err", err)
			return err
		}
	}
	if err := b.emitJoin(code); err != nil {
		return err
	}
	return b.store.SetRoomCode(code)
}

// Leave tears the connection down entirely. There is no server-side
// "leave but stay connected".
func (b *Bridge) Leave() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return b.store.SetRoomCode("")
}

// Close drops the connection without forgetting the room, so the next
// Start reconnects.
func (b *Bridge) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Share forwards a locally-originated share and records it as ours.
// When disconnected the share is dropped, not queued: the user gets an
// error notification and that is the whole story.
func (b *Bridge) Share(share domain.Share) error {
	if !b.Connected() {
		b.notifier.Notify("YShare Error", "Not connected. Please check your room connection.", "")
		return domain.ErrNotConnected
	}

	payload := ws.SharePayload{
		RoomCode: share.RoomCode,
		VideoURL: share.VideoURL,
		Title:    share.Title,
		Comment:  share.Comment,
	}
	ts := time.Now()
	if share.Timestamp != nil {
		ts = *share.Timestamp
		unix := ts.Unix()
		payload.Timestamp = &unix
	}

	if err := b.send(ws.Message{Type: ws.TypeShareVideo, Payload: payload}); err != nil {
		return fmt.Errorf("share: %w", err)
	}

	b.selfMu.Lock()
	b.recentSelf[share.VideoURL] = time.Now()
	b.selfMu.Unlock()

	return b.store.AppendHistory(HistoryEntry{
		VideoURL:  share.VideoURL,
		Title:     share.Title,
		Comment:   share.Comment,
		Timestamp: ts.Unix(),
		Sender:    SenderMe,
	})
}

// ReloadHistory replaces the local cache with the server's history for
// the joined room. Every reloaded entry is tagged as a peer's,
// regardless of who originally sent it.
func (b *Bridge) ReloadHistory(ctx context.Context) error {
	code := b.store.RoomCode()
	if code == "" {
		return domain.ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.backendURL+"/api/history/"+url.PathEscape(code), nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success  bool             `json:"success"`
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("history: backend reported failure")
	}

	entries := make([]HistoryEntry, 0, len(body.Messages))
	for _, m := range body.Messages {
		entries = append(entries, HistoryEntry{
			ID:        m.ID,
			VideoURL:  m.VideoURL,
			Title:     m.Title,
			Comment:   m.Comment,
			Timestamp: m.Timestamp.Unix(),
			Sender:    SenderFriend,
		})
	}
	return b.store.ReplaceHistory(entries)
}

func (b *Bridge) validateRoom(ctx context.Context, code string) error {
	body, _ := json.Marshal(map[string]string{"code": code})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.backendURL+"/api/room/join", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return domain.ErrRoomNotFound
	default:
		return fmt.Errorf("join room: unexpected status %d", resp.StatusCode)
	}
}

func (b *Bridge) connect() error {
	wsURL, err := websocketURL(b.backendURL)
	if err != nil {
		return err
	}

	conn, _, err := b.dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	go b.readLoop(conn)
	slog.Info("bridge: connected", "url", wsURL)
	return nil
}

func (b *Bridge) emitJoin(code string) error {
	return b.send(ws.Message{Type: ws.TypeJoinRoom, Payload: code})
}

func (b *Bridge) send(msg ws.Message) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return domain.ErrNotConnected
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(msg)
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		b.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			slog.Warn("bridge: connection lost", "err", err)
			return
		}

		switch msg.Type {
		case ws.TypeNewShare:
			var p ws.NewSharePayload
			if decode(msg.Payload, &p) == nil {
				b.handleNewShare(p)
			}
		case ws.TypeJoined:
			var p ws.JoinedPayload
			if decode(msg.Payload, &p) == nil {
				slog.Info("bridge: joined room", "room", p.RoomCode, "members", p.Members)
			}
		case ws.TypeError:
			var p ws.ErrorPayload
			if decode(msg.Payload, &p) == nil {
				slog.Warn("bridge: server error", "message", p.Message)
			}
		}
	}
}

func (b *Bridge) handleNewShare(p ws.NewSharePayload) {
	// Dual-path delivery can hand us the same share twice.
	if p.ID != "" && !b.seen.add(p.ID) {
		return
	}
	// The durable broadcast includes the sender; skip our own echo.
	if b.isRecentSelf(p.VideoURL) {
		return
	}

	if err := b.store.AppendHistory(HistoryEntry{
		ID:        p.ID,
		VideoURL:  p.VideoURL,
		Title:     p.Title,
		Comment:   p.Comment,
		Timestamp: p.Timestamp,
		Sender:    SenderFriend,
	}); err != nil {
		slog.Error("bridge: append history", "err", err)
	}

	title := p.Title
	if title == "" {
		title = "Untitled Video"
	}
	b.notifier.Notify("New Video Shared!", title, p.VideoURL)
}

func (b *Bridge) isRecentSelf(videoURL string) bool {
	b.selfMu.Lock()
	defer b.selfMu.Unlock()
	t, ok := b.recentSelf[videoURL]
	if !ok {
		return false
	}
	if time.Since(t) > selfEchoWindow {
		delete(b.recentSelf, videoURL)
		return false
	}
	return true
}

func websocketURL(backendURL string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", fmt.Errorf("backend url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String(), nil
}

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// idSet remembers the most recent ids, evicting in insertion order.
type idSet struct {
	mu    sync.Mutex
	cap   int
	order []string
	set   map[string]struct{}
}

func newIDSet(cap int) *idSet {
	return &idSet{cap: cap, set: make(map[string]struct{})}
}

// add reports whether the id was new.
func (s *idSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[id]; ok {
		return false
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.cap {
		delete(s.set, s.order[0])
		s.order = s.order[1:]
	}
	return true
}
