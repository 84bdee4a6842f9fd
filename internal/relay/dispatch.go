package relay

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/campusdesk/meeting-gateway/internal/auth"
	"github.com/campusdesk/meeting-gateway/internal/meeting"
	"github.com/campusdesk/meeting-gateway/internal/models"
)

// eventTiers maps each inbound event to the role tier the identity
// guard requires. Events at TierAuthenticated additionally verify the
// caller against the session's registered host inside the handler.
var eventTiers = map[string]auth.Tier{
	models.EventClientSendMessage:     auth.TierAdminOrStudent,
	models.EventEndMeeting:            auth.TierAuthenticated,
	models.EventHostConnected:         auth.TierAdminOrStudent,
	models.EventHostStartedMeeting:    auth.TierAuthenticated,
	models.EventHostTurnedOnCamera:    auth.TierAuthenticated,
	models.EventStudentTurnedOnCamera: auth.TierStudent,
	models.EventStudentJoinedMeeting:  auth.TierStudent,
}

// Dispatcher maps inbound named events to meeting manager operations
// and fans the effects out through the hub. Each meeting-scoped
// handler runs manager call and broadcast under one per-meeting lock,
// so members observe effects in the order they were applied.
type Dispatcher struct {
	meetings *meeting.Manager
	hub      *Hub
	locks    *meeting.KeyLock
}

func NewDispatcher(meetings *meeting.Manager, hub *Hub) *Dispatcher {
	return &Dispatcher{
		meetings: meetings,
		hub:      hub,
		locks:    meeting.NewKeyLock(),
	}
}

// Dispatch authorizes and routes one inbound event. Failures never
// propagate: they degrade to a unicast server-error (or a bare log
// line) with no session mutation and no broadcast.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, env models.Envelope) {
	tier, known := eventTiers[env.Event]
	if !known {
		log.Warn().Str("event", env.Event).Str("clientId", c.ID).Msg("unknown event")
		return
	}
	if !tier.Allows(c.Identity.Role) {
		log.Warn().
			Str("event", env.Event).
			Str("userId", c.Identity.UserID).
			Str("role", string(c.Identity.Role)).
			Msg("event rejected by role guard")
		d.reject(c, env.Event, "not authorized")
		return
	}

	switch env.Event {
	case models.EventClientSendMessage:
		d.onChat(ctx, c, env)
	case models.EventEndMeeting:
		d.onEndMeeting(ctx, c, env)
	case models.EventHostConnected:
		d.onHostConnected(ctx, c, env)
	case models.EventHostStartedMeeting:
		d.onHostStarted(ctx, c, env)
	case models.EventHostTurnedOnCamera:
		d.onHostCamera(ctx, c, env)
	case models.EventStudentTurnedOnCamera:
		d.onStudentCamera(ctx, c, env)
	case models.EventStudentJoinedMeeting:
		d.onStudentJoined(ctx, c, env)
	}
}

func (d *Dispatcher) onChat(ctx context.Context, c *Client, env models.Envelope) {
	var p models.ChatPayload
	if err := decode(env.Data, &p); err != nil || p.MeetingName == "" || p.SenderName == "" || p.MessageBody == "" {
		d.reject(c, env.Event, "malformed payload")
		return
	}

	defer d.locks.Lock(p.MeetingName)()

	msg, err := d.meetings.AppendChatMessage(ctx, p.MeetingName, models.ChatMessage{
		MeetingName: p.MeetingName,
		SenderName:  p.SenderName,
		MessageBody: p.MessageBody,
	})
	if err != nil {
		d.fail(c, env.Event, p.MeetingName, err)
		return
	}

	d.hub.BroadcastMeeting(p.MeetingName, models.EventServerSendMessages, msg)
}

func (d *Dispatcher) onEndMeeting(ctx context.Context, c *Client, env models.Envelope) {
	var p models.EndMeetingPayload
	if err := decode(env.Data, &p); err != nil || p.MeetingID == "" {
		d.reject(c, env.Event, "malformed payload")
		return
	}

	defer d.locks.Lock(p.MeetingID)()

	if err := d.meetings.EndMeeting(ctx, p.MeetingID, c.Identity.UserID); err != nil {
		d.fail(c, env.Event, p.MeetingID, err)
		return
	}

	d.hub.BroadcastMeeting(p.MeetingID, models.EventServerEndMeeting, p)
	d.hub.Disband(p.MeetingID)
}

func (d *Dispatcher) onHostConnected(ctx context.Context, c *Client, env models.Envelope) {
	var p models.HostConnectedPayload
	if err := decode(env.Data, &p); err != nil || p.MeetingID == "" {
		d.reject(c, env.Event, "malformed payload")
		return
	}

	defer d.locks.Lock(p.MeetingID)()

	session, err := d.meetings.AcknowledgeHostJoin(ctx, p.MeetingID)
	if err != nil {
		d.fail(c, env.Event, p.MeetingID, err)
		return
	}

	log.Info().Str("meetingId", p.MeetingID).Msg("host joined the meeting")

	d.hub.JoinMeeting(c, p.MeetingID)
	c.Emit(models.EventServerAckHostJoining, models.AckHostJoiningPayload{
		MessageHistory: session.MessageHistory,
		Participants:   session.Participants,
	})
}

func (d *Dispatcher) onHostStarted(ctx context.Context, c *Client, env models.Envelope) {
	var p models.HostStartedPayload
	if err := decode(env.Data, &p); err != nil || p.MeetingID == "" || p.HostPeerID == "" {
		d.reject(c, env.Event, "malformed payload")
		return
	}

	defer d.locks.Lock(p.MeetingID)()

	if err := d.meetings.CreateSession(ctx, p.MeetingID, p.Title, p.HostPeerID, c.Identity.UserID); err != nil {
		d.fail(c, env.Event, p.MeetingID, err)
		return
	}

	// Session creation has no broadcast; the creator confirms via a
	// subsequent host-connected-to-meeting read.
	d.hub.JoinMeeting(c, p.MeetingID)
}

func (d *Dispatcher) onHostCamera(ctx context.Context, c *Client, env models.Envelope) {
	var p models.HostCameraPayload
	if err := decode(env.Data, &p); err != nil || p.MeetingID == "" {
		d.reject(c, env.Event, "malformed payload")
		return
	}

	defer d.locks.Lock(p.MeetingID)()

	session, err := d.meetings.SetHostCameraState(ctx, p.MeetingID, c.Identity.UserID, p.MeetingSettings)
	if err != nil {
		d.fail(c, env.Event, p.MeetingID, err)
		return
	}

	d.hub.BroadcastMeeting(p.MeetingID, models.EventServerHostPeerIDOthers, models.HostPeerIDOthersPayload{
		HostPeerID: p.HostPeerID,
		ClientIDs:  session.ParticipantPeerIDs(),
	})
	d.hub.BroadcastMeeting(p.MeetingID, models.EventServerHostStatusUpdate, models.HostStatusUpdatePayload{
		HostSettings: p.MeetingSettings,
	})
}

func (d *Dispatcher) onStudentCamera(ctx context.Context, c *Client, env models.Envelope) {
	var p models.StudentCameraPayload
	if err := decode(env.Data, &p); err != nil || p.MeetingRoomName == "" {
		d.reject(c, env.Event, "malformed payload")
		return
	}

	allowed, err := d.meetings.StudentCameraAllowed(ctx, p.MeetingRoomName)
	if err != nil {
		d.fail(c, env.Event, p.MeetingRoomName, err)
		return
	}

	// Policy probe only; the protocol defines no broadcast here.
	if allowed {
		log.Info().Str("meetingId", p.MeetingRoomName).Msg("student wants to turn on stream")
	} else {
		log.Info().Str("meetingId", p.MeetingRoomName).Msg("student wants to turn on stream but host cam is on")
	}
}

func (d *Dispatcher) onStudentJoined(ctx context.Context, c *Client, env models.Envelope) {
	var p models.StudentJoinedPayload
	if err := decode(env.Data, &p); err != nil || p.StudentPeerID == "" || p.MeetingID == "" || p.Name == "" {
		d.reject(c, env.Event, "malformed payload")
		return
	}

	defer d.locks.Lock(p.MeetingID)()

	// Client-claimed participant settings are discarded; the manager
	// materializes the server-side defaults.
	session, participant, err := d.meetings.JoinAsParticipant(ctx, p.MeetingID, p.StudentPeerID, p.Name)
	if err != nil {
		d.fail(c, env.Event, p.MeetingID, err)
		return
	}

	d.hub.JoinMeeting(c, p.MeetingID)
	c.Emit(models.EventServerParticipantsList, models.ParticipantsListPayload{
		HostPeerID:   session.Host.PeerID,
		Participants: session.Participants,
	})
	d.hub.BroadcastMeeting(p.MeetingID, models.EventServerNewClientJoined, models.NewClientJoinedPayload{
		NewClientUUID: p.StudentPeerID,
		Participant:   participant,
	})
}

// fail translates a manager error into the client-visible outcome.
// Store failures have already been retried and logged by the adapter;
// the event simply has no visible effect.
func (d *Dispatcher) fail(c *Client, event, meetingID string, err error) {
	switch {
	case errors.Is(err, meeting.ErrSessionNotFound):
		d.reject(c, event, "meeting not found")
	case errors.Is(err, meeting.ErrNotHost):
		log.Warn().
			Str("event", event).
			Str("meetingId", meetingID).
			Str("userId", c.Identity.UserID).
			Msg("host-verified event from non-host")
		d.reject(c, event, "not the meeting host")
	default:
		log.Error().Err(err).Str("event", event).Str("meetingId", meetingID).Msg("event handler failed")
	}
}

func (d *Dispatcher) reject(c *Client, event, reason string) {
	c.Emit(models.EventServerError, models.ErrorPayload{Event: event, Reason: reason})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, v)
}
