package models

import "time"

// HostName is the reserved participant name under which the meeting
// host is registered in the session's participant map.
const HostName = "host"

// ParticipantSettings holds a participant's current and permitted
// media state. AllowedVideo is host-controlled policy; Video and Mic
// reflect the participant's live toggle state.
type ParticipantSettings struct {
	Video        bool `json:"video"`
	Mic          bool `json:"mic"`
	AllowedVideo bool `json:"allowedVideo"`
}

// Participant is one connected human in a meeting (host included).
type Participant struct {
	MeetingID string              `json:"meetingId"`
	PeerID    string              `json:"peerId"`
	Name      string              `json:"name"`
	Settings  ParticipantSettings `json:"settings"`
}

// ChatMessage is immutable once appended to a session's history.
type ChatMessage struct {
	MeetingName string `json:"meetingName"`
	SenderName  string `json:"senderName"`
	MessageBody string `json:"messageBody"`
}

// HostMediaState is the host's live camera/mic/screen state.
type HostMediaState struct {
	IsCamOn        bool `json:"isCamOn"`
	IsMicOn        bool `json:"isMicOn"`
	IsScreenShared bool `json:"isScreenShared"`
}

// MeetingSession is the store-held record for one active meeting. It
// exists in the store if and only if the host has started the meeting
// and the sliding TTL has not elapsed.
type MeetingSession struct {
	MeetingID      string                 `json:"meetingId"`
	Title          string                 `json:"meetingTitle"`
	StartTime      time.Time              `json:"startTime"`
	HostUserID     string                 `json:"hostUserId"`
	Host           Participant            `json:"host"`
	Participants   map[string]Participant `json:"participants"`
	MessageHistory []ChatMessage          `json:"messagesHistory"`
	HostCameraOn   bool                   `json:"hostCamOn"`
}

// ParticipantPeerIDs returns the peer ids of every registered
// participant, host entry included.
func (s *MeetingSession) ParticipantPeerIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.PeerID)
	}
	return ids
}
