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

const dateLayout = "2006-01-02"

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Scheduler      SchedulerConfig
	Sync           SyncConfig
	Platform       PlatformConfig
	Mapping        MappingConfig
	GradingPeriods []GradingPeriodConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the grade persistence debounce.
type SchedulerConfig struct {
	Debounce     time.Duration
	FlushTimeout time.Duration
}

// SyncConfig bounds platform push fan-out and the async sync queue.
type SyncConfig struct {
	Concurrency int
	Workers     int
	QueueSize   int
	MaxRetries  int
	RetryDelay  time.Duration
}

// PlatformConfig describes the external classroom platform API.
type PlatformConfig struct {
	BaseURL         string
	AccessToken     string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
	RosterPageSize  int
}

// MappingConfig governs identity matching and the mapping cache.
type MappingConfig struct {
	Threshold float64
	CacheTTL  time.Duration
	LockTTL   time.Duration
}

// GradingPeriodConfig is one half-open [Start, End) grading window.
type GradingPeriodConfig struct {
	Label string
	Start time.Time
	End   time.Time
}

// DefaultGradingPeriods is the six-weeks calendar of the 2024-25 school year.
const DefaultGradingPeriods = "1SW:2024-08-14:2024-09-23," +
	"2SW:2024-09-23:2024-11-04," +
	"3SW:2024-11-04:2024-12-23," +
	"4SW:2025-01-09:2025-02-20," +
	"5SW:2025-02-24:2025-04-18," +
	"6SW:2025-04-22:2025-05-30"

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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Debounce:     parseDuration(v.GetString("SCHEDULER_DEBOUNCE"), 2500*time.Millisecond),
		FlushTimeout: parseDuration(v.GetString("SCHEDULER_FLUSH_TIMEOUT"), 30*time.Second),
	}

	cfg.Sync = SyncConfig{
		Concurrency: positiveOr(v.GetInt("SYNC_CONCURRENCY"), 8),
		Workers:     positiveOr(v.GetInt("SYNC_WORKERS"), 2),
		QueueSize:   positiveOr(v.GetInt("SYNC_QUEUE_SIZE"), 32),
		MaxRetries:  positiveOr(v.GetInt("SYNC_MAX_RETRIES"), 3),
		RetryDelay:  parseDuration(v.GetString("SYNC_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Platform = PlatformConfig{
		BaseURL:         strings.TrimRight(v.GetString("PLATFORM_BASE_URL"), "/"),
		AccessToken:     v.GetString("PLATFORM_ACCESS_TOKEN"),
		Timeout:         parseDuration(v.GetString("PLATFORM_TIMEOUT"), 15*time.Second),
		RequestsPerSec:  v.GetFloat64("PLATFORM_RATE_LIMIT"),
		Burst:           positiveOr(v.GetInt("PLATFORM_RATE_BURST"), 10),
		BreakerFailures: uint32(positiveOr(v.GetInt("PLATFORM_BREAKER_FAILURES"), 5)),
		BreakerOpenFor:  parseDuration(v.GetString("PLATFORM_BREAKER_OPEN_FOR"), 30*time.Second),
		RosterPageSize:  positiveOr(v.GetInt("PLATFORM_ROSTER_PAGE_SIZE"), 100),
	}

	cfg.Mapping = MappingConfig{
		Threshold: v.GetFloat64("MAPPING_MATCH_THRESHOLD"),
		CacheTTL:  parseDuration(v.GetString("MAPPING_CACHE_TTL"), 10*time.Minute),
		LockTTL:   parseDuration(v.GetString("MAPPING_LOCK_TTL"), 2*time.Minute),
	}

	periods, err := ParseGradingPeriods(v.GetString("GRADING_PERIODS"))
	if err != nil {
		return nil, err
	}
	cfg.GradingPeriods = periods

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "gradebook")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_DEBOUNCE", "2500ms")
	v.SetDefault("SCHEDULER_FLUSH_TIMEOUT", "30s")

	v.SetDefault("SYNC_CONCURRENCY", 8)
	v.SetDefault("SYNC_WORKERS", 2)
	v.SetDefault("SYNC_QUEUE_SIZE", 32)
	v.SetDefault("SYNC_MAX_RETRIES", 3)
	v.SetDefault("SYNC_RETRY_DELAY", "5s")

	v.SetDefault("PLATFORM_BASE_URL", "https://classroom.googleapis.com")
	v.SetDefault("PLATFORM_ACCESS_TOKEN", "")
	v.SetDefault("PLATFORM_TIMEOUT", "15s")
	v.SetDefault("PLATFORM_RATE_LIMIT", 10.0)
	v.SetDefault("PLATFORM_RATE_BURST", 10)
	v.SetDefault("PLATFORM_BREAKER_FAILURES", 5)
	v.SetDefault("PLATFORM_BREAKER_OPEN_FOR", "30s")
	v.SetDefault("PLATFORM_ROSTER_PAGE_SIZE", 100)

	v.SetDefault("MAPPING_MATCH_THRESHOLD", 0.8)
	v.SetDefault("MAPPING_CACHE_TTL", "10m")
	v.SetDefault("MAPPING_LOCK_TTL", "2m")

	v.SetDefault("GRADING_PERIODS", DefaultGradingPeriods)
}

// ParseGradingPeriods reads "label:start:end" triples separated by commas.
// Dates are YYYY-MM-DD and end is exclusive.
func ParseGradingPeriods(raw string) ([]GradingPeriodConfig, error) {
	entries := splitAndTrim(raw)
	periods := make([]GradingPeriodConfig, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("grading period %q: expected label:start:end", entry)
		}
		start, err := time.Parse(dateLayout, strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("grading period %q start: %w", entry, err)
		}
		end, err := time.Parse(dateLayout, strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("grading period %q end: %w", entry, err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("grading period %q: end must be after start", entry)
		}
		periods = append(periods, GradingPeriodConfig{
			Label: strings.TrimSpace(parts[0]),
			Start: start,
			End:   end,
		})
	}
	return periods, nil
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

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
