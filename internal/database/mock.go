package database

import (
	"github.com/stretchr/testify/mock"
)

type MockMultilingoRepository struct {
	mock.Mock
}

func (m *MockMultilingoRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMultilingoRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMultilingoRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMultilingoRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMultilingoRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockMultilingoRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockMultilingoRepository) AddParticipant(params AddParticipantParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockMultilingoRepository) GetParticipantsByRoomId(roomId int) ([]RoomParticipant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]RoomParticipant), args.Error(1)
}
func (m *MockMultilingoRepository) UpdateParticipantLanguage(accountId, roomId int, translateTo string) error {
	args := m.Called(accountId, roomId, translateTo)
	return args.Error(0)
}
func (m *MockMultilingoRepository) CreateTranscription(t Transcription) (Transcription, error) {
	args := m.Called(t)
	return args.Get(0).(Transcription), args.Error(1)
}
func (m *MockMultilingoRepository) CreateTranslation(tr Translation) error {
	args := m.Called(tr)
	return args.Error(0)
}
func (m *MockMultilingoRepository) CreateMessage(msg Message) error {
	args := m.Called(msg)
	return args.Error(0)
}
func (m *MockMultilingoRepository) GetMessages(roomId, limit int) ([]Message, error) {
	args := m.Called(roomId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
