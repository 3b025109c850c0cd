package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Language     string    `json:"language,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id         int       `json:"id"`
	ExternalId string    `json:"external_id"`
	Name       string    `json:"name"`
	CreatorId  int       `json:"creator_id"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Participant is the read-only projection of a room member's live state.
// The authoritative copy is owned by the room loop.
type Participant struct {
	UserId      int    `json:"user_id"`
	UserName    string `json:"user_name"`
	Language    string `json:"language"`
	TranslateTo string `json:"translate_to"`
	Online      bool   `json:"online"`
	IsSpeaking  bool   `json:"is_speaking"`
}

// TranscriptMessage is the participant-facing projection of one finalized
// speech turn. TranslatedText is nil when the recipient is the speaker or
// their target language equals the detected source language.
type TranscriptMessage struct {
	UnitId         string    `json:"unit_id"`
	SpeakerId      int       `json:"speaker_id"`
	SpeakerName    string    `json:"speaker_name"`
	OriginalText   string    `json:"original_text"`
	Language       string    `json:"language"`
	TranslatedText *string   `json:"translated_text"`
	TargetLanguage string    `json:"target_language"`
	Timestamp      time.Time `json:"timestamp"`
}
