package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName           = "KingsInvest"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultNotifyTimeout     = 3 * time.Second
	defaultCanonicalCurrency = "USD"
	defaultKafkaTopic        = "ledger.events"
	defaultRateLimitPerMin   = 30
	idemTTLSecondsEnvVar     = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar         = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar    = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar   = "SHUTDOWN_TIMEOUT"
	notifySecondsEnvVar      = "NOTIFY_TIMEOUT_SECONDS"
	notifyDurationEnvVar     = "NOTIFY_TIMEOUT"

	// InvestSettlementRequested debits the wallet matching the requested currency and kind.
	InvestSettlementRequested = "requested"
	// InvestSettlementCanonical debits the canonical fiat wallet, like deposits and withdrawals.
	InvestSettlementCanonical = "canonical"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName           string
	AppEnv            string
	Port              string
	LogLevel          string
	LogFormat         string
	DatabaseURL       string
	RedisURL          string
	JWTSecret         string
	JWTIssuer         string
	KafkaBrokers      []string
	KafkaTopic        string
	PlansFile         string
	CanonicalCurrency string
	InvestSettlement  string
	RateLimitPerMin   int
	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
	NotifyTimeout     time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is applied first when present; real environment
// variables always win over it.
func Load() (Config, error) {
	cfg, err := read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadTooling reads the same environment as Load for maintenance commands,
// which only need a database and never serve HTTP.
func LoadTooling() (Config, error) {
	cfg, err := read()
	if err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	return cfg, nil
}

func read() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTIssuer:         os.Getenv("JWT_ISSUER"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", defaultKafkaTopic),
		PlansFile:         os.Getenv("PLANS_FILE"),
		CanonicalCurrency: strings.ToUpper(getEnv("LEDGER_CANONICAL_CURRENCY", defaultCanonicalCurrency)),
		InvestSettlement:  strings.ToLower(getEnv("LEDGER_INVEST_SETTLEMENT", InvestSettlementRequested)),
		RateLimitPerMin:   defaultRateLimitPerMin,
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		NotifyTimeout:     defaultNotifyTimeout,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.NotifyTimeout, err = durationEnv(notifySecondsEnvVar, notifyDurationEnvVar, cfg.NotifyTimeout); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMin = n
	}
	return cfg, nil
}

// Validate checks cross-field requirements. Postgres and Redis are optional in
// development, where the service falls back to in-memory storage.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	switch c.InvestSettlement {
	case InvestSettlementRequested, InvestSettlementCanonical:
	default:
		return fmt.Errorf("invalid LEDGER_INVEST_SETTLEMENT %q", c.InvestSettlement)
	}
	if c.CanonicalCurrency == "" {
		return fmt.Errorf("LEDGER_CANONICAL_CURRENCY must not be empty")
	}
	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// IsDev reports whether the service runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// durationEnv reads a timeout given either as whole seconds or as a Go duration string.
// The seconds variant takes precedence.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
