package storefront

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// StateKey is the durable storage key of the saved playback state.
const StateKey = "playku:state"

// Store is durable client-side storage (localStorage in the browser).
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string)
}

// PlaybackState is what survives a page reload. Title, image and audio URL
// let the sticky player be redrawn before the page has been rescanned.
type PlaybackState struct {
	CurrentHandle   string    `json:"currentHandle"`
	IsPlaying       bool      `json:"isPlaying"`
	PositionSeconds float64   `json:"positionSeconds"`
	LastUpdated     time.Time `json:"lastUpdated"`
	Title           string    `json:"title,omitempty"`
	Image           string    `json:"image,omitempty"`
	AudioURL        string    `json:"audioUrl,omitempty"`
}

func saveState(store Store, state PlaybackState) error {
	if store == nil {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal playback state: %w", err)
	}
	if err := store.Set(StateKey, string(data)); err != nil {
		return fmt.Errorf("store playback state: %w", err)
	}
	return nil
}

// LoadState reads the saved state. Missing or corrupt state is reported as
// no state; corrupt state is removed.
func LoadState(store Store) (PlaybackState, bool) {
	if store == nil {
		return PlaybackState{}, false
	}
	raw, ok := store.Get(StateKey)
	if !ok || raw == "" {
		return PlaybackState{}, false
	}

	var state PlaybackState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		slog.Warn("storefront: discarding unreadable playback state", "error", err)
		store.Remove(StateKey)
		return PlaybackState{}, false
	}
	if state.CurrentHandle == "" || math.IsNaN(state.PositionSeconds) || state.PositionSeconds < 0 {
		store.Remove(StateKey)
		return PlaybackState{}, false
	}
	return state, true
}

func clearState(store Store) {
	if store != nil {
		store.Remove(StateKey)
	}
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
