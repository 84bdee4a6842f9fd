package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/campusdesk/meeting-gateway/internal/auth"
	"github.com/campusdesk/meeting-gateway/internal/meeting"
	"github.com/campusdesk/meeting-gateway/internal/models"
	"github.com/campusdesk/meeting-gateway/internal/store"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *meeting.Manager, *Hub) {
	t.Helper()
	manager := meeting.NewManager(store.NewMemory(), time.Minute)
	hub := NewHub()
	return NewDispatcher(manager, hub), manager, hub
}

func newTestClient(userID string, role auth.Role) *Client {
	return &Client{
		ID:       "client-" + userID,
		Identity: auth.Identity{UserID: userID, Role: role},
		Send:     make(chan []byte, 64),
	}
}

func dispatch(t *testing.T, d *Dispatcher, c *Client, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	d.Dispatch(context.Background(), c, models.Envelope{Event: event, Data: data})
}

// drainEvents empties a client's send buffer into decoded envelopes.
func drainEvents(t *testing.T, c *Client) []models.Envelope {
	t.Helper()
	var events []models.Envelope
	for {
		select {
		case frame := <-c.Send:
			var env models.Envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			events = append(events, env)
		default:
			return events
		}
	}
}

func findEvent(events []models.Envelope, name string) (models.Envelope, bool) {
	for _, env := range events {
		if env.Event == name {
			return env, true
		}
	}
	return models.Envelope{}, false
}

func decodeInto(t *testing.T, env models.Envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Event, err)
	}
}

// TestMeetingScenario walks the full happy path: host starts, student
// joins, chat flows, host toggles the camera, host ends the meeting.
func TestMeetingScenario(t *testing.T) {
	d, manager, hub := newTestDispatcher(t)
	ctx := context.Background()

	host := newTestClient("teacher-1", auth.RoleAdmin)
	alice := newTestClient("alice", auth.RoleStudent)
	hub.Add(host)
	hub.Add(alice)

	// Host starts the meeting: no broadcast, session created.
	dispatch(t, d, host, models.EventHostStartedMeeting, models.HostStartedPayload{
		Title: "Algebra II", MeetingID: "M1", HostPeerID: "H1",
	})
	if events := drainEvents(t, host); len(events) != 0 {
		t.Fatalf("session creation broadcast %d events, want 0", len(events))
	}

	session, err := manager.AcknowledgeHostJoin(ctx, "M1")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if session.Participants[models.HostName].PeerID != "H1" {
		t.Errorf("host peer id = %q, want H1", session.Participants[models.HostName].PeerID)
	}
	if len(session.MessageHistory) != 0 {
		t.Errorf("fresh history length = %d, want 0", len(session.MessageHistory))
	}

	// Alice joins: unicast participant list, meeting-wide announce.
	dispatch(t, d, alice, models.EventStudentJoinedMeeting, models.StudentJoinedPayload{
		StudentPeerID: "S1", MeetingID: "M1", Name: "Alice",
		ParticipantSettings: models.ParticipantSettings{Video: true, Mic: true, AllowedVideo: true},
	})

	aliceEvents := drainEvents(t, alice)
	listEnv, ok := findEvent(aliceEvents, models.EventServerParticipantsList)
	if !ok {
		t.Fatal("joiner did not receive participants list")
	}
	var list models.ParticipantsListPayload
	decodeInto(t, listEnv, &list)
	if list.HostPeerID != "H1" {
		t.Errorf("unicast hostPeerId = %q, want H1", list.HostPeerID)
	}
	if list.Participants["Alice"].Settings.AllowedVideo {
		t.Error("claimed settings leaked through: allowedVideo should be false")
	}

	hostEvents := drainEvents(t, host)
	joinEnv, ok := findEvent(hostEvents, models.EventServerNewClientJoined)
	if !ok {
		t.Fatal("meeting members were not told about the new participant")
	}
	var joined models.NewClientJoinedPayload
	decodeInto(t, joinEnv, &joined)
	if joined.NewClientUUID != "S1" {
		t.Errorf("announced newClientUUID = %q, want S1", joined.NewClientUUID)
	}

	// Alice chats: all meeting members receive it, history grows.
	dispatch(t, d, alice, models.EventClientSendMessage, models.ChatPayload{
		MeetingName: "M1", SenderName: "Alice", MessageBody: "hi",
	})

	for _, c := range []*Client{host, alice} {
		events := drainEvents(t, c)
		chatEnv, ok := findEvent(events, models.EventServerSendMessages)
		if !ok {
			t.Fatalf("client %s did not receive the chat relay", c.ID)
		}
		var msg models.ChatMessage
		decodeInto(t, chatEnv, &msg)
		if msg.SenderName != "Alice" || msg.MessageBody != "hi" {
			t.Errorf("relayed message = %+v", msg)
		}
	}

	session, _ = manager.AcknowledgeHostJoin(ctx, "M1")
	if len(session.MessageHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(session.MessageHistory))
	}

	// Host turns the camera on: status update reaches the meeting.
	dispatch(t, d, host, models.EventHostTurnedOnCamera, models.HostCameraPayload{
		HostPeerID: "H1", MeetingID: "M1",
		MeetingSettings: models.HostMediaState{IsCamOn: true, IsMicOn: true},
	})

	aliceEvents = drainEvents(t, alice)
	statusEnv, ok := findEvent(aliceEvents, models.EventServerHostStatusUpdate)
	if !ok {
		t.Fatal("participant did not receive the host status update")
	}
	var status models.HostStatusUpdatePayload
	decodeInto(t, statusEnv, &status)
	if !status.HostSettings.IsCamOn {
		t.Error("isCamOn = false in status update, want true")
	}
	if _, ok := findEvent(aliceEvents, models.EventServerHostPeerIDOthers); !ok {
		t.Error("participant did not receive the host peer id announcement")
	}

	// Host ends the meeting: members notified, record deleted.
	dispatch(t, d, host, models.EventEndMeeting, models.EndMeetingPayload{MeetingID: "M1"})
	if _, ok := findEvent(drainEvents(t, alice), models.EventServerEndMeeting); !ok {
		t.Fatal("participant did not receive the end-meeting signal")
	}
	if _, err := manager.AcknowledgeHostJoin(ctx, "M1"); err == nil {
		t.Fatal("session still present after end-meeting")
	}
}

func TestHostReconnectAck(t *testing.T) {
	d, manager, hub := newTestDispatcher(t)
	ctx := context.Background()

	host := newTestClient("teacher-1", auth.RoleAdmin)
	hub.Add(host)

	if err := manager.CreateSession(ctx, "M1", "Algebra II", "H1", "teacher-1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := manager.AppendChatMessage(ctx, "M1", models.ChatMessage{
		MeetingName: "M1", SenderName: "Alice", MessageBody: "hi",
	}); err != nil {
		t.Fatalf("AppendChatMessage: %v", err)
	}

	dispatch(t, d, host, models.EventHostConnected, models.HostConnectedPayload{MeetingID: "M1"})

	events := drainEvents(t, host)
	ackEnv, ok := findEvent(events, models.EventServerAckHostJoining)
	if !ok {
		t.Fatal("host did not receive the joining ack")
	}
	var ack models.AckHostJoiningPayload
	decodeInto(t, ackEnv, &ack)
	if len(ack.MessageHistory) != 1 || ack.MessageHistory[0].MessageBody != "hi" {
		t.Errorf("ack history = %+v", ack.MessageHistory)
	}
	if _, ok := ack.Participants[models.HostName]; !ok {
		t.Error("ack participants missing the host entry")
	}
}

func TestRoleGuardRejectsWithoutMutation(t *testing.T) {
	d, manager, hub := newTestDispatcher(t)
	ctx := context.Background()

	admin := newTestClient("teacher-1", auth.RoleAdmin)
	other := newTestClient("observer", auth.RoleAdmin)
	hub.Add(admin)
	hub.Add(other)

	if err := manager.CreateSession(ctx, "M1", "Algebra II", "H1", "teacher-1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// student-joined-meeting requires the student tier.
	dispatch(t, d, admin, models.EventStudentJoinedMeeting, models.StudentJoinedPayload{
		StudentPeerID: "S9", MeetingID: "M1", Name: "Imposter",
	})

	events := drainEvents(t, admin)
	errEnv, ok := findEvent(events, models.EventServerError)
	if !ok {
		t.Fatal("rejected caller did not receive server-error")
	}
	var errPayload models.ErrorPayload
	decodeInto(t, errEnv, &errPayload)
	if errPayload.Event != models.EventStudentJoinedMeeting {
		t.Errorf("server-error event = %q", errPayload.Event)
	}

	if events := drainEvents(t, other); len(events) != 0 {
		t.Errorf("rejected event broadcast %d frames, want 0", len(events))
	}

	session, err := manager.AcknowledgeHostJoin(ctx, "M1")
	if err != nil {
		t.Fatalf("AcknowledgeHostJoin: %v", err)
	}
	if len(session.Participants) != 1 {
		t.Errorf("participants = %d after rejected join, want 1", len(session.Participants))
	}
}

func TestNonHostCannotEndMeeting(t *testing.T) {
	d, manager, hub := newTestDispatcher(t)
	ctx := context.Background()

	student := newTestClient("alice", auth.RoleStudent)
	hub.Add(student)

	if err := manager.CreateSession(ctx, "M1", "Algebra II", "H1", "teacher-1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	dispatch(t, d, student, models.EventEndMeeting, models.EndMeetingPayload{MeetingID: "M1"})

	if _, ok := findEvent(drainEvents(t, student), models.EventServerError); !ok {
		t.Fatal("non-host end-meeting did not produce server-error")
	}
	if _, err := manager.AcknowledgeHostJoin(ctx, "M1"); err != nil {
		t.Fatalf("session should survive a non-host end attempt: %v", err)
	}
}

func TestMalformedPayloadRejectedBeforeManager(t *testing.T) {
	d, manager, hub := newTestDispatcher(t)
	ctx := context.Background()

	student := newTestClient("alice", auth.RoleStudent)
	hub.Add(student)

	if err := manager.CreateSession(ctx, "M1", "Algebra II", "H1", "teacher-1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Missing messageBody.
	dispatch(t, d, student, models.EventClientSendMessage, models.ChatPayload{
		MeetingName: "M1", SenderName: "Alice",
	})

	if _, ok := findEvent(drainEvents(t, student), models.EventServerError); !ok {
		t.Fatal("malformed chat did not produce server-error")
	}

	session, err := manager.AcknowledgeHostJoin(ctx, "M1")
	if err != nil {
		t.Fatalf("AcknowledgeHostJoin: %v", err)
	}
	if len(session.MessageHistory) != 0 {
		t.Errorf("history length = %d after malformed chat, want 0", len(session.MessageHistory))
	}
}

func TestChatAgainstExpiredMeetingIsNoOp(t *testing.T) {
	d, _, hub := newTestDispatcher(t)

	student := newTestClient("alice", auth.RoleStudent)
	observer := newTestClient("bob", auth.RoleStudent)
	hub.Add(student)
	hub.Add(observer)

	dispatch(t, d, student, models.EventClientSendMessage, models.ChatPayload{
		MeetingName: "gone", SenderName: "Alice", MessageBody: "hello?",
	})

	if _, ok := findEvent(drainEvents(t, student), models.EventServerError); !ok {
		t.Fatal("chat against a missing meeting did not produce server-error")
	}
	if events := drainEvents(t, observer); len(events) != 0 {
		t.Errorf("missing-meeting chat broadcast %d frames, want 0", len(events))
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	d, _, hub := newTestDispatcher(t)

	client := newTestClient("alice", auth.RoleStudent)
	hub.Add(client)

	d.Dispatch(context.Background(), client, models.Envelope{Event: "no-such-event"})

	if events := drainEvents(t, client); len(events) != 0 {
		t.Errorf("unknown event produced %d frames, want 0", len(events))
	}
}

func TestBroadcastScopedToMeeting(t *testing.T) {
	d, manager, hub := newTestDispatcher(t)
	ctx := context.Background()

	alice := newTestClient("alice", auth.RoleStudent)
	mallory := newTestClient("mallory", auth.RoleStudent)
	hub.Add(alice)
	hub.Add(mallory)

	if err := manager.CreateSession(ctx, "M1", "Algebra II", "H1", "teacher-1"); err != nil {
		t.Fatalf("CreateSession M1: %v", err)
	}
	if err := manager.CreateSession(ctx, "M2", "Chemistry", "H2", "teacher-2"); err != nil {
		t.Fatalf("CreateSession M2: %v", err)
	}

	dispatch(t, d, alice, models.EventStudentJoinedMeeting, models.StudentJoinedPayload{
		StudentPeerID: "S1", MeetingID: "M1", Name: "Alice",
	})
	dispatch(t, d, mallory, models.EventStudentJoinedMeeting, models.StudentJoinedPayload{
		StudentPeerID: "S2", MeetingID: "M2", Name: "Mallory",
	})
	drainEvents(t, alice)
	drainEvents(t, mallory)

	dispatch(t, d, alice, models.EventClientSendMessage, models.ChatPayload{
		MeetingName: "M1", SenderName: "Alice", MessageBody: "secret",
	})

	if _, ok := findEvent(drainEvents(t, alice), models.EventServerSendMessages); !ok {
		t.Fatal("meeting member did not receive the chat")
	}
	if _, ok := findEvent(drainEvents(t, mallory), models.EventServerSendMessages); ok {
		t.Fatal("chat leaked to a client outside the meeting")
	}
}
