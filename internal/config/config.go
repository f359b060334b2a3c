// Package config loads and validates application configuration from
// environment variables (ATLARIS_ prefix) and an optional config file.
package config

import "time"

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Queue      QueueConfig      `mapstructure:"queue" validate:"required"`
	Quota      QuotaConfig      `mapstructure:"quota" validate:"required"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetime    time.Duration `mapstructure:"token_lifetime" validate:"required"`
	BcryptCost       int           `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// LLMConfig contains settings for the Gemini generation provider.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
}

// GenerationConfig contains the orchestration tunables for attempt
// reservation and finalization.
type GenerationConfig struct {
	// AttemptCap is the number of moduleless attempts allowed per plan.
	AttemptCap int `mapstructure:"attempt_cap" validate:"required,gte=1"`

	// RateLimitWindow is the rolling window for the durable per-user
	// attempt rate limit.
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" validate:"required"`

	// RateLimitCeiling is the maximum attempts per user inside the window.
	RateLimitCeiling int `mapstructure:"rate_limit_ceiling" validate:"required,gte=1"`

	// Timeout bounds a single generation call.
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`

	// ExtendedTimeout is used for the single retry after a timeout.
	ExtendedTimeout time.Duration `mapstructure:"extended_timeout" validate:"required"`

	// TopicMaxLen and NotesMaxLen cap free-text inputs before hashing.
	TopicMaxLen int `mapstructure:"topic_max_len" validate:"required,gte=1"`
	NotesMaxLen int `mapstructure:"notes_max_len" validate:"required,gte=1"`
}

// QueueConfig contains job queue and worker settings.
type QueueConfig struct {
	// WorkerCount is the number of background dequeue workers. Zero
	// disables the background runner (inline-drain deployments).
	WorkerCount int `mapstructure:"worker_count" validate:"gte=0"`

	// PollInterval is how often idle workers poll for pending jobs.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`

	// MaxRetries bounds requeues of retryably-failed jobs.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// StuckJobAge is how long a job may sit in processing before the
	// monitor resets it to pending.
	StuckJobAge time.Duration `mapstructure:"stuck_job_age" validate:"required"`

	// InlineDrainMax is the batch size for inline drains triggered after
	// an enqueue. Zero disables inline draining.
	InlineDrainMax int `mapstructure:"inline_drain_max" validate:"gte=0"`
}

// QuotaConfig contains per-tier monthly generation caps.
type QuotaConfig struct {
	FreeCap    int `mapstructure:"free_cap" validate:"required,gte=1"`
	StarterCap int `mapstructure:"starter_cap" validate:"required,gte=1"`
	ProCap     int `mapstructure:"pro_cap" validate:"required,gte=1"`
}
