package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	RateLimitBackend string
	GradeBands       string
	AIProvider       string
	OpenAIAPIKey     string
	OpenAIModel      string
	ExaminerTimeout  time.Duration
	SummaryTimeout   time.Duration
	FallbackRatio    float64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ESSAYMARK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "EssayMark API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("examiner_timeout_ms", 45000)
	v.SetDefault("summary_timeout_ms", 30000)
	v.SetDefault("examiner_fallback_ratio", 0.5)

	examinerTimeoutMs := v.GetInt("examiner_timeout_ms")
	if examinerTimeoutMs <= 0 {
		examinerTimeoutMs = 45000
	}
	summaryTimeoutMs := v.GetInt("summary_timeout_ms")
	if summaryTimeoutMs <= 0 {
		summaryTimeoutMs = 30000
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		RateLimitBackend: strings.ToLower(v.GetString("ratelimit.backend")),
		GradeBands:       v.GetString("grade.bands"),
		AIProvider:       strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIModel:      v.GetString("ai.model"),
		ExaminerTimeout:  time.Duration(examinerTimeoutMs) * time.Millisecond,
		SummaryTimeout:   time.Duration(summaryTimeoutMs) * time.Millisecond,
		FallbackRatio:    v.GetFloat64("examiner_fallback_ratio"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.RateLimitBackend == "redis" && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis url must be provided for the redis rate limit backend")
	}

	return cfg, nil
}
