package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server   Server
	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Auth     Auth
	Trade    Trade
	Registry Registry
	Schedule Schedule
	Log      Log
}

// Server captures the ops HTTP listener.
type Server struct {
	Addr string
}

// Database selects the trade store. Driver is "postgres", "sqlite" or
// "memory"; URL is a DSN for postgres and a file path for sqlite.
type Database struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig backs the distributed run lock. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka backs the run audit stream. No brokers disables publishing.
type Kafka struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Auth holds the token endpoint credentials.
type Auth struct {
	TokenURL      string
	Username      string
	Password      string
	ClientID      string
	ClientSecret  string
	RefreshPeriod time.Duration
	Timeout       time.Duration
}

// Trade configures the paginated trade data API and the ingestion pipeline.
type Trade struct {
	DataURL          string
	SenderPIN        string
	TransactionID    string
	PageSize         int
	Timeout          time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	FetchConcurrency int
	PersistWorkers   int
	BatchSize        int
}

// Registry configures the organization registry lookups.
type Registry struct {
	LegalURL      string
	IndividualURL string
	Timeout       time.Duration
	Spacing       time.Duration
	// RefreshIncomplete also re-queries stored organizations that still
	// have empty fields.
	RefreshIncomplete bool
}

// Schedule drives the background runs.
type Schedule struct {
	Mode         string
	Interval     time.Duration
	LookbackDays int
	RunOnStart   bool
	LockTTL      time.Duration
}

// Log selects the slog handler.
type Log struct {
	Level  string
	Format string
}

const (
	ModeImport = "import"
	ModeUpdate = "update"
)

// Default returns the configuration used when no environment overrides it.
func Default() Config {
	return Config{
		Server:   Server{Addr: ":8080"},
		Database: Database{Driver: "memory", MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{Topic: "tradesync.runs", ClientID: "tradesync"},
		Auth: Auth{
			RefreshPeriod: 9 * time.Minute,
			Timeout:       10 * time.Second,
		},
		Trade: Trade{
			TransactionID:    "1",
			PageSize:         500,
			Timeout:          10 * time.Second,
			MaxRetries:       3,
			BackoffBase:      2 * time.Second,
			FetchConcurrency: 5,
			PersistWorkers:   4,
			BatchSize:        500,
		},
		Registry: Registry{
			Timeout: 10 * time.Second,
			Spacing: 300 * time.Millisecond,
		},
		Schedule: Schedule{
			Mode:         ModeUpdate,
			Interval:     time.Hour,
			LookbackDays: 1,
			RunOnStart:   true,
			LockTTL:      2 * time.Hour,
		},
		Log: Log{Level: "info", Format: "json"},
	}
}

// FromEnv builds a Config from environment variables on top of Default so
// main stays lean. Malformed values are reported together.
func FromEnv() (Config, error) {
	cfg := Default()
	r := &envReader{}

	cfg.Server.Addr = r.str("TRADESYNC_ADDR", cfg.Server.Addr)

	cfg.Database.Driver = r.str("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = r.str("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = r.int("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = r.int("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = r.duration("DATABASE_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.Redis.URL = r.str("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.PoolSize = r.int("REDIS_POOL_SIZE", cfg.Redis.PoolSize)
	cfg.Redis.MinIdleConns = r.int("REDIS_MIN_IDLE_CONNS", cfg.Redis.MinIdleConns)
	cfg.Redis.DialTimeout = r.duration("REDIS_DIAL_TIMEOUT", cfg.Redis.DialTimeout)
	cfg.Redis.ReadTimeout = r.duration("REDIS_READ_TIMEOUT", cfg.Redis.ReadTimeout)
	cfg.Redis.WriteTimeout = r.duration("REDIS_WRITE_TIMEOUT", cfg.Redis.WriteTimeout)

	cfg.Kafka.Brokers = r.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = r.str("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.ClientID = r.str("KAFKA_CLIENT_ID", cfg.Kafka.ClientID)

	cfg.Auth.TokenURL = r.str("AUTH_TOKEN_URL", cfg.Auth.TokenURL)
	cfg.Auth.Username = r.str("AUTH_USERNAME", cfg.Auth.Username)
	cfg.Auth.Password = r.str("AUTH_PASSWORD", cfg.Auth.Password)
	cfg.Auth.ClientID = r.str("AUTH_CLIENT_ID", cfg.Auth.ClientID)
	cfg.Auth.ClientSecret = r.str("AUTH_CLIENT_SECRET", cfg.Auth.ClientSecret)
	cfg.Auth.RefreshPeriod = r.duration("AUTH_REFRESH_PERIOD", cfg.Auth.RefreshPeriod)
	cfg.Auth.Timeout = r.duration("AUTH_TIMEOUT", cfg.Auth.Timeout)

	cfg.Trade.DataURL = r.str("TRADE_DATA_URL", cfg.Trade.DataURL)
	cfg.Trade.SenderPIN = r.str("TRADE_SENDER_PIN", cfg.Trade.SenderPIN)
	cfg.Trade.TransactionID = r.str("TRADE_TRANSACTION_ID", cfg.Trade.TransactionID)
	cfg.Trade.PageSize = r.int("TRADE_PAGE_SIZE", cfg.Trade.PageSize)
	cfg.Trade.Timeout = r.duration("TRADE_TIMEOUT", cfg.Trade.Timeout)
	cfg.Trade.MaxRetries = r.int("TRADE_MAX_RETRIES", cfg.Trade.MaxRetries)
	cfg.Trade.BackoffBase = r.duration("TRADE_BACKOFF_BASE", cfg.Trade.BackoffBase)
	cfg.Trade.FetchConcurrency = r.int("TRADE_FETCH_CONCURRENCY", cfg.Trade.FetchConcurrency)
	cfg.Trade.PersistWorkers = r.int("TRADE_PERSIST_WORKERS", cfg.Trade.PersistWorkers)
	cfg.Trade.BatchSize = r.int("TRADE_BATCH_SIZE", cfg.Trade.BatchSize)

	cfg.Registry.LegalURL = r.str("REGISTRY_LEGAL_URL", cfg.Registry.LegalURL)
	cfg.Registry.IndividualURL = r.str("REGISTRY_INDIVIDUAL_URL", cfg.Registry.IndividualURL)
	cfg.Registry.Timeout = r.duration("REGISTRY_TIMEOUT", cfg.Registry.Timeout)
	cfg.Registry.Spacing = r.duration("REGISTRY_SPACING", cfg.Registry.Spacing)
	cfg.Registry.RefreshIncomplete = r.bool("REGISTRY_REFRESH_INCOMPLETE", cfg.Registry.RefreshIncomplete)

	cfg.Schedule.Mode = r.str("SCHEDULE_MODE", cfg.Schedule.Mode)
	cfg.Schedule.Interval = r.duration("SCHEDULE_INTERVAL", cfg.Schedule.Interval)
	cfg.Schedule.LookbackDays = r.int("SCHEDULE_LOOKBACK_DAYS", cfg.Schedule.LookbackDays)
	cfg.Schedule.RunOnStart = r.bool("SCHEDULE_RUN_ON_START", cfg.Schedule.RunOnStart)
	cfg.Schedule.LockTTL = r.duration("SCHEDULE_LOCK_TTL", cfg.Schedule.LockTTL)

	cfg.Log.Level = r.str("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = r.str("LOG_FORMAT", cfg.Log.Format)

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the pipelines rely on.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for driver %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Auth.TokenURL == "" {
		errs = append(errs, errors.New("AUTH_TOKEN_URL is required"))
	}
	if c.Trade.DataURL == "" {
		errs = append(errs, errors.New("TRADE_DATA_URL is required"))
	}
	if c.Trade.PageSize <= 0 || c.Trade.BatchSize <= 0 {
		errs = append(errs, errors.New("page size and batch size must be positive"))
	}
	if c.Trade.FetchConcurrency <= 0 || c.Trade.PersistWorkers <= 0 {
		errs = append(errs, errors.New("fetch concurrency and persist workers must be positive"))
	}
	if c.Trade.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries must not be negative"))
	}
	if c.Auth.RefreshPeriod <= 0 {
		errs = append(errs, errors.New("token refresh period must be positive"))
	}
	if c.Schedule.Mode != ModeImport && c.Schedule.Mode != ModeUpdate {
		errs = append(errs, fmt.Errorf("unknown schedule mode %q", c.Schedule.Mode))
	}
	if c.Schedule.LookbackDays < 0 {
		errs = append(errs, errors.New("lookback days must not be negative"))
	}
	return errors.Join(errs...)
}

type envReader struct {
	errs []error
}

func (r *envReader) str(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func (r *envReader) int(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) bool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return fallback
	}
}

func (r *envReader) list(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
