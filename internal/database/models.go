package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	Language     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id         int
	ExternalId string
	Name       string
	CreatorId  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type RoomParticipant struct {
	Id          int
	AccountId   int
	RoomId      int
	Username    string
	Language    string
	TranslateTo string
	JoinedAt    time.Time
}

// Transcription is one finalized speech turn as stored. Immutable after
// creation.
type Transcription struct {
	Id               int
	UnitId           string
	AccountId        int
	RoomId           int
	OriginalText     string
	DetectedLanguage string
	Confidence       float64
	CreatedAt        time.Time
}

type Translation struct {
	Id              int
	TranscriptionId int
	TargetLanguage  string
	TranslatedText  string
	CreatedAt       time.Time
}

// Message is the UI history projection of a transcript unit for one target
// language.
type Message struct {
	Id               int
	RoomId           int
	AccountId        int
	UnitId           string
	SpeakerName      string
	OriginalText     string
	OriginalLanguage string
	TranslatedText   *string
	TargetLanguage   string
	CreatedAt        time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	Language     string
}

type CreateRoomParams struct {
	Name       string `json:"name"`
	CreatorId  int    `json:"-"`
	ExternalId string `json:"external_id"`
}

type AddParticipantParams struct {
	AccountId   int
	RoomId      int
	Language    string
	TranslateTo string
}
