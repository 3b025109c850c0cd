package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	ServerAddr        string        `env:"MULTILINGO_ADDR" env-default:"localhost:8000"`
	DatabaseDSN       string        `env:"MULTILINGO_DSN"`
	SigningSecret     string        `env:"MULTILINGO_SIGNING_KEY"`
	AllowedOrigins    []string      `env:"MULTILINGO_ALLOWED_ORIGINS"`
	TranscriberURL    string        `env:"MULTILINGO_TRANSCRIBER_URL" env-default:"http://localhost:9000"`
	TranscribeModel   string        `env:"MULTILINGO_TRANSCRIBE_MODEL" env-default:"whisper-1"`
	TranslatorURL     string        `env:"MULTILINGO_TRANSLATOR_URL" env-default:"http://localhost:5000"`
	TranslatorKey     string        `env:"MULTILINGO_TRANSLATOR_KEY"`
	TranscribeTimeout time.Duration `env:"MULTILINGO_TRANSCRIBE_TIMEOUT" env-default:"30s"`
	TranslateTimeout  time.Duration `env:"MULTILINGO_TRANSLATE_TIMEOUT" env-default:"10s"`

	// SigningKey is the decoded SigningSecret.
	SigningKey []byte `env:"-"`
}

// Load reads the configuration from the environment. Explicit arguments
// override the environment; either source must supply the required fields.
func Load(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if serverAddr != "" {
		cfg.ServerAddr = serverAddr
	}
	if databaseDSN != "" {
		cfg.DatabaseDSN = databaseDSN
	}
	if base64Secret != "" {
		cfg.SigningSecret = base64Secret
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowedOrigins = allowedOrigins
	}

	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := base64.StdEncoding.DecodeString(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	cfg.SigningKey = signingKey

	return &cfg, nil
}
