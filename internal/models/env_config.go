package models

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type EnvConfig struct {
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Port        string `envconfig:"PORT" default:"24000"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	TokenSecret string `envconfig:"TOKEN_SECRET" required:"true"`
	// Zero means tokens live until their device is removed.
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"0"`

	Epoch    int64 `envconfig:"EPOCH" default:"1649325271415"`
	WorkerID int   `envconfig:"WORKER_ID" default:"0"`

	RequestsPerMinute   int `envconfig:"REQUESTS_PER_MINUTE" default:"120"`
	IPRequestsPerMinute int `envconfig:"IP_REQUESTS_PER_MINUTE" default:"20"`
	MessagesPerMinute   int `envconfig:"MESSAGES_PER_MINUTE" default:"30"`

	MaxMessageLen    int `envconfig:"MAX_MESSAGE_LEN" default:"2000"`
	MaxGuildsPerUser int `envconfig:"MAX_GUILDS_PER_USER" default:"200"`
}

// ReadEnvConfig reads DERAILED_* variables.
func ReadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("derailed", &cfg); err != nil {
		return cfg, err
	}
	if len(cfg.TokenSecret) < 32 {
		return cfg, errors.New("DERAILED_TOKEN_SECRET must be at least 32 bytes")
	}
	return cfg, nil
}
