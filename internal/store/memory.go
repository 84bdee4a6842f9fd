package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/campusdesk/meeting-gateway/internal/models"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process SessionStore used when no Redis
// address is configured (local development) and by the test suites.
// Records are held as JSON blobs so reads return independent copies,
// matching the Redis adapter's semantics.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, meetingID string) (*models.MeetingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[meetingID]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.entries, meetingID)
		return nil, ErrNotFound
	}

	var session models.MeetingSession
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *MemoryStore) Set(_ context.Context, meetingID string, session *models.MeetingSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[meetingID] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, meetingID)
	return nil
}

// TTL reports the remaining lifetime of a record, or false when the
// record is absent or already expired.
func (s *MemoryStore) TTL(meetingID string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[meetingID]
	if !ok {
		return 0, false
	}
	remaining := time.Until(entry.expiresAt)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}
