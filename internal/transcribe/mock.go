package transcribe

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Transcribe(ctx context.Context, wavData []byte, forcedLanguage string) (Result, error) {
	args := m.Called(ctx, wavData, forcedLanguage)
	return args.Get(0).(Result), args.Error(1)
}
