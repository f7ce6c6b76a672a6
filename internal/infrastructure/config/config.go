package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service, decoded from the
// environment. Optional integrations (Redis, queue, upstream services) are
// left empty when their variables are unset; callers decide the fallback.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	DatabaseURL string `env:"DB_URL,required"`
	RedisURL    string `env:"REDIS_URL"`

	// CryptoSecret seeds the AES key for message content at rest.
	CryptoSecret string `env:"CHAT_CRYPTO_SECRET,required"`

	ReservationsBase string `env:"RESERVATIONS_API_BASE"`
	UsersBase        string `env:"USERS_API_BASE"`
	UsersPublicPath  string `env:"USERS_PUBLIC_PATH,default=/public"`

	RolesCacheTTL    time.Duration `env:"ROLES_CACHE_TTL,default=5m"`
	ProfilesCacheTTL time.Duration `env:"PROFILES_CACHE_TTL,default=15m"`

	QueueConcurrency int `env:"QUEUE_CONCURRENCY,default=10"`
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load() (*Config, error) {
	// A missing .env file is fine in deployed environments.
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}
	return &cfg, nil
}
