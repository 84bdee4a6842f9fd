// Package store provides the TTL-bounded key-value session store the
// meeting manager runs against. The contract is deliberately small:
// get, set-with-TTL, delete. There is no compare-and-swap; callers
// must serialize read-modify-write sequences per key themselves.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/campusdesk/meeting-gateway/internal/models"
)

// ErrNotFound is returned by Get when no session record exists for
// the key, either because it was never created or because its TTL
// elapsed.
var ErrNotFound = errors.New("session record not found")

// SessionStore holds one serializable session record per meeting id.
// Every Set carries a time-to-live; an expired record reads as absent.
type SessionStore interface {
	Get(ctx context.Context, meetingID string) (*models.MeetingSession, error)
	Set(ctx context.Context, meetingID string, session *models.MeetingSession, ttl time.Duration) error
	Delete(ctx context.Context, meetingID string) error
}
