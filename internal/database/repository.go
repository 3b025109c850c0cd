package database

type MultilingoRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	AddParticipant(params AddParticipantParams) error
	GetParticipantsByRoomId(roomId int) ([]RoomParticipant, error)
	UpdateParticipantLanguage(accountId, roomId int, translateTo string) error
	CreateTranscription(t Transcription) (Transcription, error)
	CreateTranslation(tr Translation) error
	CreateMessage(m Message) error
	GetMessages(roomId, limit int) ([]Message, error)
}
