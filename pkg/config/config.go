package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	BaseURL   string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Azure      AzureConfig
	Anthropic  AnthropicConfig
	Generation GenerationConfig
	Chat       ChatConfig
	Feynman    FeynmanConfig
	Cache      CacheConfig
	Uploads    UploadsConfig
	Share      ShareConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AzureConfig holds credentials for the managed chat-completion deployment.
// Endpoint is the full deployment URL as copied from the portal.
type AzureConfig struct {
	APIKey     string
	Endpoint   string
	APIVersion string
	CharBudget int
}

// AnthropicConfig holds credentials for the direct SDK backend.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	CharBudget int
}

// GenerationConfig tunes the document pipeline.
type GenerationConfig struct {
	MinTextLength      int
	Timeout            time.Duration
	SummaryTimeout     time.Duration
	Parallel           bool
	QuizFailureIsFatal bool
	DefaultModelType   string
	Temperature        float64
	MaxTokens          int
}

// ChatConfig tunes the document-grounded chat responder.
type ChatConfig struct {
	ContextChars int
	Timeout      time.Duration
}

// FeynmanConfig tunes the explain-it-back flow.
type FeynmanConfig struct {
	QuestionCount  int
	ReferenceChars int
	Timeout        time.Duration
	SessionTTL     time.Duration
	SessionStore   string
}

// CacheConfig governs the document read-through cache.
type CacheConfig struct {
	Enabled     bool
	DocumentTTL time.Duration
}

// UploadsConfig limits inbound documents.
type UploadsConfig struct {
	MaxBytes int64
}

// ShareConfig signs read-only share links.
type ShareConfig struct {
	Secret string
	TTL    time.Duration
}

const defaultShareSecret = "dev_share_secret"

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.BaseURL = v.GetString("BASE_URL")
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Azure = AzureConfig{
		APIKey:     v.GetString("AZURE_OPENAI_API_KEY"),
		Endpoint:   v.GetString("AZURE_OPENAI_ENDPOINT"),
		APIVersion: v.GetString("AZURE_OPENAI_API_VERSION"),
		CharBudget: v.GetInt("GENERATION_AZURE_CHAR_BUDGET"),
	}

	cfg.Anthropic = AnthropicConfig{
		APIKey:     v.GetString("ANTHROPIC_API_KEY"),
		Model:      v.GetString("ANTHROPIC_MODEL"),
		CharBudget: v.GetInt("GENERATION_ANTHROPIC_CHAR_BUDGET"),
	}

	cfg.Generation = GenerationConfig{
		MinTextLength:      v.GetInt("GENERATION_MIN_TEXT_LENGTH"),
		Timeout:            parseDuration(v.GetString("GENERATION_TIMEOUT"), 30*time.Second),
		SummaryTimeout:     parseDuration(v.GetString("GENERATION_SUMMARY_TIMEOUT"), 20*time.Second),
		Parallel:           v.GetBool("GENERATION_PARALLEL"),
		QuizFailureIsFatal: v.GetBool("GENERATION_QUIZ_FAILURE_IS_FATAL"),
		DefaultModelType:   v.GetString("DEFAULT_MODEL_TYPE"),
		Temperature:        v.GetFloat64("GENERATION_TEMPERATURE"),
		MaxTokens:          v.GetInt("GENERATION_MAX_TOKENS"),
	}

	cfg.Chat = ChatConfig{
		ContextChars: v.GetInt("CHAT_CONTEXT_CHARS"),
		Timeout:      parseDuration(v.GetString("CHAT_TIMEOUT"), 15*time.Second),
	}

	cfg.Feynman = FeynmanConfig{
		QuestionCount:  v.GetInt("FEYNMAN_QUESTION_COUNT"),
		ReferenceChars: v.GetInt("FEYNMAN_REFERENCE_CHARS"),
		Timeout:        parseDuration(v.GetString("FEYNMAN_TIMEOUT"), 20*time.Second),
		SessionTTL:     parseDuration(v.GetString("FEYNMAN_SESSION_TTL"), 24*time.Hour),
		SessionStore:   strings.ToLower(v.GetString("FEYNMAN_SESSION_STORE")),
	}
	if cfg.Feynman.SessionStore == SessionStoreRedis && !cfg.Redis.Enabled {
		cfg.Feynman.SessionStore = SessionStoreMemory
	}

	cfg.Cache = CacheConfig{
		Enabled:     v.GetBool("ENABLE_CACHE") && cfg.Redis.Enabled,
		DocumentTTL: parseDuration(v.GetString("DOCUMENT_CACHE_TTL"), 10*time.Minute),
	}

	maxUploadMB := v.GetInt64("MAX_UPLOAD_MB")
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	cfg.Uploads = UploadsConfig{MaxBytes: maxUploadMB * 1024 * 1024}

	cfg.Share = ShareConfig{
		Secret: v.GetString("SHARE_SECRET"),
		TTL:    parseDuration(v.GetString("SHARE_TTL"), 7*24*time.Hour),
	}
	if cfg.Env == EnvProduction && (strings.TrimSpace(cfg.Share.Secret) == "" || cfg.Share.Secret == defaultShareSecret) {
		return nil, errors.New("SHARE_SECRET must be set to a non-default value in production")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("BASE_URL", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "studygen")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AZURE_OPENAI_API_KEY", "")
	v.SetDefault("AZURE_OPENAI_ENDPOINT", "")
	v.SetDefault("AZURE_OPENAI_API_VERSION", "2024-08-01-preview")
	v.SetDefault("GENERATION_AZURE_CHAR_BUDGET", 12000)

	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest")
	v.SetDefault("GENERATION_ANTHROPIC_CHAR_BUDGET", 30000)

	v.SetDefault("GENERATION_MIN_TEXT_LENGTH", 100)
	v.SetDefault("GENERATION_TIMEOUT", "30s")
	v.SetDefault("GENERATION_SUMMARY_TIMEOUT", "20s")
	v.SetDefault("GENERATION_PARALLEL", true)
	v.SetDefault("GENERATION_QUIZ_FAILURE_IS_FATAL", true)
	v.SetDefault("DEFAULT_MODEL_TYPE", "azure")
	v.SetDefault("GENERATION_TEMPERATURE", 0.7)
	v.SetDefault("GENERATION_MAX_TOKENS", 2048)

	v.SetDefault("CHAT_CONTEXT_CHARS", 15000)
	v.SetDefault("CHAT_TIMEOUT", "15s")

	v.SetDefault("FEYNMAN_QUESTION_COUNT", 5)
	v.SetDefault("FEYNMAN_REFERENCE_CHARS", 2000)
	v.SetDefault("FEYNMAN_TIMEOUT", "20s")
	v.SetDefault("FEYNMAN_SESSION_TTL", "24h")
	v.SetDefault("FEYNMAN_SESSION_STORE", SessionStoreRedis)

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("DOCUMENT_CACHE_TTL", "10m")

	v.SetDefault("MAX_UPLOAD_MB", 25)

	v.SetDefault("SHARE_SECRET", defaultShareSecret)
	v.SetDefault("SHARE_TTL", "168h")
}

// SetConfigFile bypasses viper's search path, so a missing .env surfaces as a
// plain fs error instead of ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
