// Package meeting owns the lifecycle of meeting sessions against the
// TTL-bounded session store: creation, participant registration, chat
// history, host media state, and end-of-meeting cleanup. Every
// operation that touches a session renews its TTL, so an active
// meeting never expires mid-session.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/campusdesk/meeting-gateway/internal/models"
	"github.com/campusdesk/meeting-gateway/internal/store"
)

var (
	// ErrSessionNotFound signals a mutating or reading operation
	// against a meeting that was never created or has expired.
	// Callers treat it as a no-op with a diagnostic, not a fatal
	// error, since meetings expire naturally.
	ErrSessionNotFound = errors.New("meeting session not found")

	// ErrNotHost signals a host-verified operation whose caller is
	// not the session's registered host.
	ErrNotHost = errors.New("caller is not the meeting host")
)

// Manager is the meeting session manager. All read-modify-write
// sequences for one meeting id are serialized through an in-process
// key lock; the store itself offers no atomic update primitive.
type Manager struct {
	store store.SessionStore
	ttl   time.Duration
	locks *KeyLock
}

func NewManager(s store.SessionStore, ttl time.Duration) *Manager {
	return &Manager{
		store: s,
		ttl:   ttl,
		locks: NewKeyLock(),
	}
}

// CreateSession initializes a meeting with the host pre-registered
// under the reserved "host" name. If a session already exists for the
// id, the call is a no-op: the first creation's start time and host
// win.
func (m *Manager) CreateSession(ctx context.Context, meetingID, title, hostPeerID, hostUserID string) error {
	defer m.locks.Lock(meetingID)()

	_, err := m.store.Get(ctx, meetingID)
	if err == nil {
		log.Debug().Str("meetingId", meetingID).Msg("meeting already initialized")
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	host := models.Participant{
		MeetingID: meetingID,
		PeerID:    hostPeerID,
		Name:      models.HostName,
		Settings: models.ParticipantSettings{
			Video:        false,
			Mic:          false,
			AllowedVideo: true,
		},
	}
	session := &models.MeetingSession{
		MeetingID:      meetingID,
		Title:          title,
		StartTime:      time.Now(),
		HostUserID:     hostUserID,
		Host:           host,
		Participants:   map[string]models.Participant{models.HostName: host},
		MessageHistory: []models.ChatMessage{},
	}

	if err := m.store.Set(ctx, meetingID, session, m.ttl); err != nil {
		return err
	}
	log.Info().Str("meetingId", meetingID).Str("host", hostUserID).Msg("meeting initialized")
	return nil
}

// JoinAsParticipant registers a participant and returns the updated
// session along with the participant record as stored. Client-claimed
// media settings are ignored: joiners always start with video, mic
// and allowedVideo off. A display name already in use is suffixed
// rather than overwritten.
func (m *Manager) JoinAsParticipant(ctx context.Context, meetingID, peerID, name string) (*models.MeetingSession, models.Participant, error) {
	defer m.locks.Lock(meetingID)()

	session, err := m.store.Get(ctx, meetingID)
	if err != nil {
		return nil, models.Participant{}, m.missing(meetingID, "join", err)
	}

	participant := models.Participant{
		MeetingID: meetingID,
		PeerID:    peerID,
		Name:      uniqueName(session.Participants, name),
		Settings: models.ParticipantSettings{
			Video:        false,
			Mic:          false,
			AllowedVideo: false,
		},
	}
	session.Participants[participant.Name] = participant

	if err := m.store.Set(ctx, meetingID, session, m.ttl); err != nil {
		return nil, models.Participant{}, err
	}
	log.Info().Str("meetingId", meetingID).Str("name", participant.Name).Msg("participant joined meeting")
	return session, participant, nil
}

// AppendChatMessage appends a message to the session's history and
// returns it. Order of appends is the order every observer sees.
func (m *Manager) AppendChatMessage(ctx context.Context, meetingID string, msg models.ChatMessage) (models.ChatMessage, error) {
	defer m.locks.Lock(meetingID)()

	session, err := m.store.Get(ctx, meetingID)
	if err != nil {
		return models.ChatMessage{}, m.missing(meetingID, "chat", err)
	}

	session.MessageHistory = append(session.MessageHistory, msg)

	if err := m.store.Set(ctx, meetingID, session, m.ttl); err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

// SetHostCameraState records the host's media state and returns the
// updated session for relay. The caller must be the session's
// registered host.
func (m *Manager) SetHostCameraState(ctx context.Context, meetingID, callerUserID string, state models.HostMediaState) (*models.MeetingSession, error) {
	defer m.locks.Lock(meetingID)()

	session, err := m.store.Get(ctx, meetingID)
	if err != nil {
		return nil, m.missing(meetingID, "host camera", err)
	}
	if session.HostUserID != callerUserID {
		return nil, ErrNotHost
	}

	session.HostCameraOn = state.IsCamOn

	if err := m.store.Set(ctx, meetingID, session, m.ttl); err != nil {
		return nil, err
	}
	return session, nil
}

// AcknowledgeHostJoin returns the current history and participants
// for a reconnecting host. The read counts as activity: the TTL is
// renewed so an otherwise quiet meeting does not expire under its
// host.
func (m *Manager) AcknowledgeHostJoin(ctx context.Context, meetingID string) (*models.MeetingSession, error) {
	defer m.locks.Lock(meetingID)()

	session, err := m.store.Get(ctx, meetingID)
	if err != nil {
		return nil, m.missing(meetingID, "host join ack", err)
	}

	if err := m.store.Set(ctx, meetingID, session, m.ttl); err != nil {
		return nil, err
	}
	return session, nil
}

// EndMeeting deletes the session record. The caller must be the
// session's registered host. Subsequent events for the meeting get
// the normal not-found no-op.
func (m *Manager) EndMeeting(ctx context.Context, meetingID, callerUserID string) error {
	defer m.locks.Lock(meetingID)()

	session, err := m.store.Get(ctx, meetingID)
	if err != nil {
		return m.missing(meetingID, "end", err)
	}
	if session.HostUserID != callerUserID {
		return ErrNotHost
	}

	if err := m.store.Delete(ctx, meetingID); err != nil {
		return err
	}
	log.Info().Str("meetingId", meetingID).Msg("meeting ended, session deleted")
	return nil
}

// StudentCameraAllowed reports whether a student may turn on their
// stream right now: not while the host's camera is on. A pure policy
// probe, it does not renew the TTL.
func (m *Manager) StudentCameraAllowed(ctx context.Context, meetingID string) (bool, error) {
	session, err := m.store.Get(ctx, meetingID)
	if err != nil {
		return false, m.missing(meetingID, "student camera", err)
	}
	return !session.HostCameraOn, nil
}

func (m *Manager) missing(meetingID, op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Str("meetingId", meetingID).Str("op", op).Msg("meeting not found in session store")
		return ErrSessionNotFound
	}
	return err
}

// uniqueName disambiguates a colliding display name with a numeric
// suffix. Overwriting would silently drop a registered peer id.
func uniqueName(participants map[string]models.Participant, name string) string {
	if _, taken := participants[name]; !taken {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if _, taken := participants[candidate]; !taken {
			return candidate
		}
	}
}
