package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/npezzotti/go-multilingo/internal/types"
)

// Inbound message kinds (client -> server). Audio units are binary frames
// with no envelope.
const (
	TypeJoin           = "join"
	TypeLeave          = "leave"
	TypeLanguageChange = "language_change"
	TypeSpeakingStatus = "speaking_status"
	TypeEndSession     = "end_session"
)

// Outbound message kinds (server -> client).
const (
	TypeParticipantsList  = "participants_list"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeTranscription     = "transcription"
	TypeSessionEnded      = "session_ended"
)

// CloseNotFound is sent when the requested room or participant does not
// exist at connect time. Clients must not auto-retry this class.
const CloseNotFound = 4004

// ClientMessage is the tagged inbound envelope. The kind set is closed:
// anything else is a protocol violation.
type ClientMessage struct {
	Type        string `json:"type"`
	UserId      int    `json:"user_id,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	Language    string `json:"language,omitempty"`
	TranslateTo string `json:"translate_to,omitempty"`
	IsSpeaking  bool   `json:"is_speaking,omitempty"`

	client    *Client
	timestamp time.Time
}

// parseClientMessage decodes and validates one inbound text frame.
func parseClientMessage(raw []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}

	switch msg.Type {
	case TypeJoin:
		if msg.UserId == 0 || msg.UserName == "" || msg.Language == "" {
			return nil, fmt.Errorf("join: missing required fields")
		}
	case TypeLeave, TypeEndSession:
		if msg.UserId == 0 {
			return nil, fmt.Errorf("%s: missing user_id", msg.Type)
		}
	case TypeLanguageChange:
		if msg.UserId == 0 || msg.TranslateTo == "" {
			return nil, fmt.Errorf("language_change: missing required fields")
		}
	case TypeSpeakingStatus:
		if msg.UserId == 0 {
			return nil, fmt.Errorf("speaking_status: missing user_id")
		}
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}

	return &msg, nil
}

// ServerMessage is the flat outbound envelope. Only the fields relevant to
// the kind are populated.
type ServerMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// participants_list
	Participants []types.Participant `json:"participants,omitempty"`
	CreatorId    int                 `json:"creator_id,omitempty"`

	// participant_joined
	Participant *types.Participant `json:"participant,omitempty"`

	// participant_left, speaking_status
	UserId     int   `json:"user_id,omitempty"`
	IsSpeaking *bool `json:"is_speaking,omitempty"`

	// transcription
	Message *types.TranscriptMessage `json:"message,omitempty"`

	// session_ended
	EndedBy string `json:"ended_by,omitempty"`
}

func newParticipantsList(participants []types.Participant, creatorId int) *ServerMessage {
	return &ServerMessage{
		Type:         TypeParticipantsList,
		Timestamp:    Now(),
		Participants: participants,
		CreatorId:    creatorId,
	}
}

func newParticipantJoined(p types.Participant) *ServerMessage {
	return &ServerMessage{
		Type:        TypeParticipantJoined,
		Timestamp:   Now(),
		Participant: &p,
	}
}

func newParticipantLeft(userId int) *ServerMessage {
	return &ServerMessage{
		Type:      TypeParticipantLeft,
		Timestamp: Now(),
		UserId:    userId,
	}
}

func newSpeakingStatus(userId int, isSpeaking bool) *ServerMessage {
	return &ServerMessage{
		Type:       TypeSpeakingStatus,
		Timestamp:  Now(),
		UserId:     userId,
		IsSpeaking: &isSpeaking,
	}
}

func newTranscription(msg *types.TranscriptMessage) *ServerMessage {
	return &ServerMessage{
		Type:      TypeTranscription,
		Timestamp: Now(),
		Message:   msg,
	}
}

func newSessionEnded(endedBy string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeSessionEnded,
		Timestamp: Now(),
		EndedBy:   endedBy,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
