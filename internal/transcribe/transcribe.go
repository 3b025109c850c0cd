// Package transcribe defines the boundary to the external speech-recognition
// engine. Empty or low-confidence results are normal outcomes for noise
// bursts, not errors.
package transcribe

import (
	"context"
)

type Result struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type Engine interface {
	// Transcribe recognizes one finalized audio unit. wavData is a complete
	// audio container; forcedLanguage pins the recognition language and may
	// be empty for auto-detection.
	Transcribe(ctx context.Context, wavData []byte, forcedLanguage string) (Result, error)
}
