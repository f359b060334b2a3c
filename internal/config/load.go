package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables (prefixed ATLARIS_)
// and an optional config.yaml in the working directory. Environment
// variables take precedence. The result is validated before being
// returned.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ATLARIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults suffice.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("auth.token_lifetime", time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")

	v.SetDefault("generation.attempt_cap", 3)
	v.SetDefault("generation.rate_limit_window", time.Hour)
	v.SetDefault("generation.rate_limit_ceiling", 10)
	v.SetDefault("generation.timeout", 30*time.Second)
	v.SetDefault("generation.extended_timeout", 45*time.Second)
	v.SetDefault("generation.topic_max_len", 200)
	v.SetDefault("generation.notes_max_len", 2000)

	v.SetDefault("queue.worker_count", 2)
	v.SetDefault("queue.poll_interval", 2*time.Second)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.stuck_job_age", 15*time.Minute)
	v.SetDefault("queue.inline_drain_max", 0)

	v.SetDefault("quota.free_cap", 5)
	v.SetDefault("quota.starter_cap", 25)
	v.SetDefault("quota.pro_cap", 100)
}
