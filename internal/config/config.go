package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Values come from the environment, with
// .env files loaded first for local development.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseURL string        `env:"DATABASE_URL,required"`
	LockTimeout time.Duration `env:"DB_LOCK_TIMEOUT" envDefault:"5s"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	RabbitMQURL string `env:"RABBITMQ_URL,required"`

	AuthPrivateKeyPath string        `env:"AUTH_PRIVATE_KEY_PATH,required"`
	AuthPublicKeyPath  string        `env:"AUTH_PUBLIC_KEY_PATH,required"`
	AuthIssuer         string        `env:"AUTH_ISSUER" envDefault:"brickbid"`
	TokenTTL           time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`

	RelayBatchSize int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	RelayInterval  time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
}

// Load reads the configuration from .env files and the environment
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ReadKeyPair loads the RSA key material referenced by the config
func (c *Config) ReadKeyPair() (privatePEM, publicPEM []byte, err error) {
	privatePEM, err = os.ReadFile(c.AuthPrivateKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key: %w", err)
	}
	publicPEM, err = os.ReadFile(c.AuthPublicKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return privatePEM, publicPEM, nil
}
