package notifier

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds engine configuration. The unsubscribe secret signs tokens
// embedded in every outgoing email, so rotating it invalidates links already
// delivered.
type Config struct {
	UnsubscribeSecret   string        `env:"NOTIFIER_UNSUBSCRIBE_SECRET,required"`
	UnsubscribeBaseURL  string        `env:"NOTIFIER_UNSUBSCRIBE_BASE_URL,required"`
	UnsubscribeTokenTTL time.Duration `env:"NOTIFIER_UNSUBSCRIBE_TOKEN_TTL" envDefault:"720h"`

	MaxDeliveryAttempts int           `env:"NOTIFIER_MAX_DELIVERY_ATTEMPTS" envDefault:"3"`
	RetryDelay          time.Duration `env:"NOTIFIER_RETRY_DELAY" envDefault:"30s"`

	// DigestCron is the scan cadence for the digest batcher, standard
	// five-field cron syntax.
	DigestCron string `env:"NOTIFIER_DIGEST_CRON" envDefault:"*/15 * * * *"`

	WorkerConcurrency  int           `env:"NOTIFIER_WORKER_CONCURRENCY" envDefault:"4"`
	WorkerPullInterval time.Duration `env:"NOTIFIER_WORKER_PULL_INTERVAL" envDefault:"1s"`
}

// Validate checks values env parsing cannot.
func (c Config) Validate() error {
	if c.MaxDeliveryAttempts < 1 {
		return errors.New("max delivery attempts must be at least 1")
	}
	if c.WorkerConcurrency < 1 {
		return errors.New("worker concurrency must be at least 1")
	}
	if _, err := cron.ParseStandard(c.DigestCron); err != nil {
		return fmt.Errorf("invalid digest cron spec %q: %w", c.DigestCron, err)
	}
	return nil
}

// LoadConfig reads configuration from the environment, loading .env first
// when present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse notifier config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
