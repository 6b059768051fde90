package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port string

	AIProvider            string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIModelTranscribe string
	GeminiAPIKey          string
	GeminiModel           string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenFile    string

	BaseURL     string
	ShareSecret string
	ShareTTL    time.Duration

	ProcessingDelay  time.Duration
	MaxDownloadBytes int64
	DataDir          string
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")

	cfg.AIProvider = envOrDefault("AI_PROVIDER", "openai")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = envOrDefault("OPENAI_MODEL", "gpt-4o")
	cfg.OpenAIModelTranscribe = envOrDefault("OPENAI_MODEL_TRANSCRIBE", "whisper-1")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = envOrDefault("GEMINI_MODEL", "gemini-2.0-flash")

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleTokenFile = envOrDefault("GOOGLE_TOKEN_FILE", "token.json")

	cfg.BaseURL = envOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%s", cfg.Port))
	cfg.ShareSecret = envOrDefault("SHARE_SECRET", "change-me")
	cfg.DataDir = envOrDefault("DATA_DIR", "data")

	shareTTLSeconds, err := parseIntEnv("SHARE_TTL_SECONDS", 86400)
	if err != nil {
		return Config{}, fmt.Errorf("parse SHARE_TTL_SECONDS: %w", err)
	}
	cfg.ShareTTL = time.Duration(shareTTLSeconds) * time.Second

	delayMS, err := parseIntEnv("PROCESSING_DELAY_MS", 1000)
	if err != nil {
		return Config{}, fmt.Errorf("parse PROCESSING_DELAY_MS: %w", err)
	}
	cfg.ProcessingDelay = time.Duration(delayMS) * time.Millisecond

	maxDownloadMB, err := parseIntEnv("MAX_DOWNLOAD_MB", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_DOWNLOAD_MB: %w", err)
	}
	cfg.MaxDownloadBytes = maxDownloadMB * 1024 * 1024

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}
