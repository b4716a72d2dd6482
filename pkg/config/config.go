package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Engine        EngineConfig
	Matching      MatchingConfig
	Notifications NotificationsConfig
	DailyUpdate   DailyUpdateConfig
	Cache         CacheConfig
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
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig carries the hard-constraint defaults and processing budgets
// for the scheduling orchestrator. Per-request overrides may tighten but
// never exceed MaxGroupClassSize.
type EngineConfig struct {
	MaxStudentsPerClass            int
	MinStudentsForGroupClass       int
	MaxConcurrentClassesPerTeacher int
	MaxClassesPerDayPerStudent     int
	MinBreakBetweenClasses         time.Duration
	MinAdvanceBookingHours         int
	MaxAdvanceBookingDays          int
	WorkingHoursStart              int // minutes from midnight
	WorkingHoursEnd                int
	MaxOptimizationIterations      int
	MaxProcessingTime              time.Duration
	AutoApplyThreshold             float64
	AsyncWorkers                   int
	ResultTTL                      time.Duration
}

// MatchingConfig governs the 1-on-1 auto-matcher.
type MatchingConfig struct {
	AutoConfirmThreshold float64
	MaxCandidates        int
}

// NotificationsConfig sizes the fire-and-forget dispatch queue.
type NotificationsConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
}

// DailyUpdateConfig carries the batch retry policy defaults.
type DailyUpdateConfig struct {
	Enabled           bool
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// CacheConfig tunes the scheduling context snapshot cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

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
		if !errors.As(err, &notFound) {
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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		MaxStudentsPerClass:            v.GetInt("ENGINE_MAX_STUDENTS_PER_CLASS"),
		MinStudentsForGroupClass:       v.GetInt("ENGINE_MIN_STUDENTS_FOR_GROUP_CLASS"),
		MaxConcurrentClassesPerTeacher: v.GetInt("ENGINE_MAX_CONCURRENT_CLASSES_PER_TEACHER"),
		MaxClassesPerDayPerStudent:     v.GetInt("ENGINE_MAX_CLASSES_PER_DAY_PER_STUDENT"),
		MinBreakBetweenClasses:         parseDuration(v.GetString("ENGINE_MIN_BREAK_BETWEEN_CLASSES"), 15*time.Minute),
		MinAdvanceBookingHours:         v.GetInt("ENGINE_MIN_ADVANCE_BOOKING_HOURS"),
		MaxAdvanceBookingDays:          v.GetInt("ENGINE_MAX_ADVANCE_BOOKING_DAYS"),
		WorkingHoursStart:              v.GetInt("ENGINE_WORKING_HOURS_START"),
		WorkingHoursEnd:                v.GetInt("ENGINE_WORKING_HOURS_END"),
		MaxOptimizationIterations:      v.GetInt("ENGINE_MAX_OPTIMIZATION_ITERATIONS"),
		MaxProcessingTime:              parseDuration(v.GetString("ENGINE_MAX_PROCESSING_TIME"), 30*time.Second),
		AutoApplyThreshold:             v.GetFloat64("ENGINE_AUTO_APPLY_THRESHOLD"),
		AsyncWorkers:                   v.GetInt("ENGINE_ASYNC_WORKERS"),
		ResultTTL:                      parseDuration(v.GetString("ENGINE_RESULT_TTL"), time.Hour),
	}
	cfg.Matching = MatchingConfig{
		AutoConfirmThreshold: v.GetFloat64("MATCHING_AUTO_CONFIRM_THRESHOLD"),
		MaxCandidates:        v.GetInt("MATCHING_MAX_CANDIDATES"),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:    v.GetBool("NOTIFICATIONS_ENABLED"),
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		BufferSize: v.GetInt("NOTIFICATIONS_BUFFER_SIZE"),
	}

	cfg.DailyUpdate = DailyUpdateConfig{
		Enabled:           v.GetBool("DAILY_UPDATE_ENABLED"),
		MaxRetries:        v.GetInt("DAILY_UPDATE_MAX_RETRIES"),
		InitialDelay:      parseDuration(v.GetString("DAILY_UPDATE_INITIAL_DELAY"), time.Second),
		BackoffMultiplier: v.GetFloat64("DAILY_UPDATE_BACKOFF_MULTIPLIER"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

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
	v.SetDefault("DB_NAME", "scheduling")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENGINE_MAX_STUDENTS_PER_CLASS", 9)
	v.SetDefault("ENGINE_MIN_STUDENTS_FOR_GROUP_CLASS", 2)
	v.SetDefault("ENGINE_MAX_CONCURRENT_CLASSES_PER_TEACHER", 1)
	v.SetDefault("ENGINE_MAX_CLASSES_PER_DAY_PER_STUDENT", 3)
	v.SetDefault("ENGINE_MIN_BREAK_BETWEEN_CLASSES", "15m")
	v.SetDefault("ENGINE_MIN_ADVANCE_BOOKING_HOURS", 24)
	v.SetDefault("ENGINE_MAX_ADVANCE_BOOKING_DAYS", 30)
	v.SetDefault("ENGINE_WORKING_HOURS_START", 8*60)
	v.SetDefault("ENGINE_WORKING_HOURS_END", 21*60)
	v.SetDefault("ENGINE_MAX_OPTIMIZATION_ITERATIONS", 5)
	v.SetDefault("ENGINE_MAX_PROCESSING_TIME", "30s")
	v.SetDefault("ENGINE_AUTO_APPLY_THRESHOLD", 0.75)
	v.SetDefault("ENGINE_ASYNC_WORKERS", 4)
	v.SetDefault("ENGINE_RESULT_TTL", "1h")

	v.SetDefault("MATCHING_AUTO_CONFIRM_THRESHOLD", 0.8)
	v.SetDefault("MATCHING_MAX_CANDIDATES", 10)

	v.SetDefault("NOTIFICATIONS_ENABLED", true)
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER_SIZE", 64)

	v.SetDefault("DAILY_UPDATE_ENABLED", true)
	v.SetDefault("DAILY_UPDATE_MAX_RETRIES", 3)
	v.SetDefault("DAILY_UPDATE_INITIAL_DELAY", "1s")
	v.SetDefault("DAILY_UPDATE_BACKOFF_MULTIPLIER", 2.0)

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_TTL", "5m")
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
