package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPEngine posts audio units to an OpenAI-compatible transcription
// endpoint (POST {base}/v1/audio/transcriptions, multipart form).
type HTTPEngine struct {
	baseURL string
	model   string
	client  *http.Client
	log     *log.Logger
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func NewHTTPEngine(baseURL, model string, timeout time.Duration, logger *log.Logger) *HTTPEngine {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &HTTPEngine{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		log:     logger,
	}
}

func (e *HTTPEngine) Transcribe(ctx context.Context, wavData []byte, forcedLanguage string) (Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "unit.wav")
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wavData); err != nil {
		return Result{}, fmt.Errorf("write form file: %w", err)
	}

	if err := mw.WriteField("model", e.model); err != nil {
		return Result{}, fmt.Errorf("write model field: %w", err)
	}
	if forcedLanguage != "" {
		if err := mw.WriteField("language", forcedLanguage); err != nil {
			return Result{}, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, fmt.Errorf("write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return Result{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("transcribe: status %d: %s", resp.StatusCode, b)
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	return Result{
		Text:       tr.Text,
		Language:   tr.Language,
		Confidence: confidenceFromSegments(tr),
	}, nil
}

// confidenceFromSegments derives a 0..1 confidence from the engine's
// per-segment average log probabilities. Engines that omit segments get the
// benefit of the doubt; the pipeline's floor check still applies to the text.
func confidenceFromSegments(tr transcriptionResponse) float64 {
	if len(tr.Segments) == 0 {
		return 1.0
	}

	var sum float64
	for _, s := range tr.Segments {
		sum += s.AvgLogprob
	}

	return math.Exp(sum / float64(len(tr.Segments)))
}
