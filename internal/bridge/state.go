package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Senders recorded against history entries.
const (
	SenderMe     = "me"
	SenderFriend = "friend"
)

// historyCap bounds the local cache; the oldest entry is evicted first.
const historyCap = 100

type HistoryEntry struct {
	ID        string `json:"id,omitempty"`
	VideoURL  string `json:"videoUrl"`
	Title     string `json:"title,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Sender    string `json:"sender"` // "me" | "friend"
}

type State struct {
	RoomCode   string         `json:"roomCode,omitempty"`
	BackendURL string         `json:"backendUrl,omitempty"`
	History    []HistoryEntry `json:"history"`
}

// Store persists the device-local state as a JSON file. It is the Go
// stand-in for the extension's local storage area.
type Store struct {
	mu    sync.Mutex
	path  string
	state State
}

func OpenStore(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return s, nil
}

func (s *Store) RoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RoomCode
}

func (s *Store) SetRoomCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RoomCode = code
	return s.save()
}

func (s *Store) BackendURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.BackendURL
}

func (s *Store) SetBackendURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BackendURL = url
	return s.save()
}

// History returns a copy of the cached entries, oldest first.
func (s *Store) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.state.History))
	copy(out, s.state.History)
	return out
}

// AppendHistory adds an entry, evicting the oldest past the cap.
func (s *Store) AppendHistory(e HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.History = append(s.state.History, e)
	if n := len(s.state.History); n > historyCap {
		s.state.History = s.state.History[n-historyCap:]
	}
	return s.save()
}

// ReplaceHistory swaps the whole cache, applying the same cap.
func (s *Store) ReplaceHistory(entries []HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(entries); n > historyCap {
		entries = entries[n-historyCap:]
	}
	s.state.History = append([]HistoryEntry(nil), entries...)
	return s.save()
}

// save writes the state file atomically. Caller holds the lock.
func (s *Store) save() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
