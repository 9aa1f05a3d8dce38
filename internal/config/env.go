package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
	Level         string
}

// ProviderConfig is the credential and endpoint for one backend.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ProvidersConfig holds per-backend settings keyed by backend name.
type ProvidersConfig struct {
	Default        string
	RequestTimeout time.Duration
	Mistral        ProviderConfig
	OpenAI         ProviderConfig
	Gemini         ProviderConfig
	Anthropic      ProviderConfig
}

// Get returns the settings for backend, or false when it has none.
func (p ProvidersConfig) Get(backend string) (ProviderConfig, bool) {
	switch strings.ToLower(backend) {
	case "mistral":
		return p.Mistral, true
	case "openai":
		return p.OpenAI, true
	case "gemini":
		return p.Gemini, true
	case "anthropic":
		return p.Anthropic, true
	}
	return ProviderConfig{}, false
}

// ClassifyConfig defines chunking and fan-out limits.
type ClassifyConfig struct {
	ChunkSize     int
	MaxConcurrent int
}

// ConvertConfig controls the LibreOffice converter for legacy formats.
type ConvertConfig struct {
	Binary  string
	Workers int
	Timeout time.Duration
}

// ServerConfig defines the demo HTTP server.
type ServerConfig struct {
	Port         string
	UploadDir    string
	MaxUploadMB  int64
	UploadMaxAge time.Duration
}

// StoreConfig defines where classification jobs are kept.
type StoreConfig struct {
	RedisURL  string
	ResultTTL time.Duration
}

// AWSConfig holds optional static credentials for s3:// documents.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Providers ProvidersConfig
	Classify  ClassifyConfig
	Convert   ConvertConfig
	Server    ServerConfig
	Store     StoreConfig
	AWS       AWSConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/docuglean.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_docuglean",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
		Level:         strings.ToLower(getEnv("AXIOM_LEVEL", "info")),
	}

	cfg.Providers = ProvidersConfig{
		Default:        strings.ToLower(getEnv("DEFAULT_PROVIDER", "mistral")),
		RequestTimeout: parseDuration(getEnv("REQUEST_TIMEOUT", "120s"), 120*time.Second),
		Mistral:        provider("MISTRAL"),
		OpenAI:         provider("OPENAI"),
		Gemini:         provider("GEMINI"),
		Anthropic:      provider("ANTHROPIC"),
	}

	cfg.Classify = ClassifyConfig{
		ChunkSize:     parseInt(getEnv("CHUNK_SIZE", "75"), 75),
		MaxConcurrent: parseInt(getEnv("MAX_CONCURRENT", "5"), 5),
	}
	if cfg.Classify.ChunkSize <= 0 {
		cfg.Classify.ChunkSize = 75
	}
	if cfg.Classify.MaxConcurrent <= 0 {
		cfg.Classify.MaxConcurrent = 5
	}

	cfg.Convert = ConvertConfig{
		Binary:  getEnv("SOFFICE_BIN", ""),
		Workers: parseInt(getEnv("CONVERT_WORKERS", "2"), 2),
		Timeout: parseDuration(getEnv("CONVERT_TIMEOUT", "3m"), 3*time.Minute),
	}

	cfg.Server = ServerConfig{
		Port:         getEnv("PORT", "3000"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB:  int64(parseInt(getEnv("MAX_UPLOAD_MB", "50"), 50)),
		UploadMaxAge: parseDuration(getEnv("UPLOAD_MAX_AGE", "1h"), time.Hour),
	}

	cfg.Store = StoreConfig{
		RedisURL:  getEnv("REDIS_URL", ""),
		ResultTTL: parseDuration(getEnv("RESULT_TTL", "24h"), 24*time.Hour),
	}

	cfg.AWS = AWSConfig{
		Region:          getEnv("AWS_REGION", "us-east-1"),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	return cfg
}

func provider(prefix string) ProviderConfig {
	return ProviderConfig{
		APIKey:  getEnv(prefix+"_API_KEY", ""),
		Model:   getEnv(prefix+"_MODEL", ""),
		BaseURL: getEnv(prefix+"_BASE_URL", ""),
	}
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
