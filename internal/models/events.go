package models

import "encoding/json"

// Inbound event names.
const (
	EventClientSendMessage     = "client-send-message-to-server"
	EventEndMeeting            = "end-meeting"
	EventHostConnected         = "host-connected-to-meeting"
	EventHostStartedMeeting    = "host-started-meeting"
	EventHostTurnedOnCamera    = "host-turned-on-camera"
	EventStudentTurnedOnCamera = "student-turned-on-camera"
	EventStudentJoinedMeeting  = "student-joined-meeting"
)

// Outbound event names.
const (
	EventServerSendMessages     = "server-send-messages-to-clients"
	EventServerEndMeeting       = "server-send-end-meeting-message-to-clients"
	EventServerAckHostJoining   = "server-ack-host-joining"
	EventServerHostPeerIDOthers = "server-sent-host-peerId-others"
	EventServerHostStatusUpdate = "server-sent-host-status-update"
	EventServerParticipantsList = "server-sent-client-participants-list"
	EventServerNewClientJoined  = "server-emit-new-client-joined"
	EventUsers                  = "users"
	EventServerError            = "server-error"
)

// Envelope is the wire frame exchanged in both directions: a named
// event plus its JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatPayload is the body of client-send-message-to-server. The
// meeting name doubles as the session store key.
type ChatPayload struct {
	MeetingName string `json:"meetingName"`
	SenderName  string `json:"senderName"`
	MessageBody string `json:"messageBody"`
}

// EndMeetingPayload is the body of end-meeting.
type EndMeetingPayload struct {
	MeetingID string `json:"meetingId"`
}

// HostConnectedPayload is the body of host-connected-to-meeting.
type HostConnectedPayload struct {
	MeetingID string `json:"meetingId"`
}

// HostStartedPayload is the body of host-started-meeting.
type HostStartedPayload struct {
	Title      string `json:"title"`
	MeetingID  string `json:"meetingId"`
	HostPeerID string `json:"hostPeerId"`
}

// HostCameraPayload is the body of host-turned-on-camera.
type HostCameraPayload struct {
	HostPeerID      string         `json:"hostPeerId"`
	MeetingID       string         `json:"meetingId"`
	MeetingSettings HostMediaState `json:"meetingSettings"`
}

// StudentCameraPayload is the body of student-turned-on-camera.
type StudentCameraPayload struct {
	HostPeerID      string `json:"hostPeerId"`
	MeetingRoomName string `json:"meetingRoomName"`
}

// StudentJoinedPayload is the body of student-joined-meeting. The
// participant settings claimed here are ignored server-side.
type StudentJoinedPayload struct {
	StudentPeerID       string              `json:"studentPeerId"`
	MeetingID           string              `json:"meetingId"`
	Name                string              `json:"name"`
	ParticipantSettings ParticipantSettings `json:"participantSettings"`
}

// AckHostJoiningPayload is the unicast reply to a reconnecting host.
type AckHostJoiningPayload struct {
	MessageHistory []ChatMessage          `json:"messageHistory"`
	Participants   map[string]Participant `json:"participants"`
}

// HostPeerIDOthersPayload announces the host's peer id to a meeting.
type HostPeerIDOthersPayload struct {
	HostPeerID string   `json:"hostPeerId"`
	ClientIDs  []string `json:"clientIds"`
}

// HostStatusUpdatePayload carries the host's updated media state.
type HostStatusUpdatePayload struct {
	HostSettings HostMediaState `json:"hostSettings"`
}

// ParticipantsListPayload is the unicast reply to a joining student.
type ParticipantsListPayload struct {
	HostPeerID   string                 `json:"hostPeerId"`
	Participants map[string]Participant `json:"participants"`
}

// NewClientJoinedPayload announces a new participant to a meeting.
type NewClientJoinedPayload struct {
	NewClientUUID string      `json:"newClientUUID"`
	Participant   Participant `json:"participant"`
}

// UsersPayload is the global connection-count telemetry signal.
type UsersPayload struct {
	Count int `json:"count"`
}

// ErrorPayload is the unicast server-error reply for a rejected or
// failed inbound event. Session state is never mutated on this path.
type ErrorPayload struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}
