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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	Cleanup  CleanupConfig
	Cache    CacheConfig
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

// StorageConfig governs the on-disk layout, upload limits and media tokens.
type StorageConfig struct {
	Root              string
	PublicBaseURL     string
	TokenSecret       string
	TokenTTL          time.Duration
	ChecksumAlgorithm string
	StreamChunkSize   int64
	MaxVideoSize      int64
	MaxDocumentSize   int64
	MaxImageSize      int64
	MaxOtherSize      int64
	TelemetryWorkers  int
}

// CleanupConfig tunes the reclamation sweep.
type CleanupConfig struct {
	Enabled     bool
	Interval    time.Duration
	OrphanGrace time.Duration
	TempMaxAge  time.Duration
}

// CacheConfig tunes the file-metadata cache.
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

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Root:              v.GetString("STORAGE_ROOT"),
		PublicBaseURL:     v.GetString("STORAGE_PUBLIC_BASE_URL"),
		TokenSecret:       v.GetString("MEDIA_TOKEN_SECRET"),
		TokenTTL:          parseDuration(v.GetString("MEDIA_TOKEN_TTL"), time.Hour),
		ChecksumAlgorithm: v.GetString("CHECKSUM_ALGORITHM"),
		StreamChunkSize:   positiveInt64(v.GetInt64("STREAM_CHUNK_SIZE"), 1<<20),
		MaxVideoSize:      positiveInt64(v.GetInt64("MAX_VIDEO_SIZE"), 2<<30),
		MaxDocumentSize:   positiveInt64(v.GetInt64("MAX_DOCUMENT_SIZE"), 50<<20),
		MaxImageSize:      positiveInt64(v.GetInt64("MAX_IMAGE_SIZE"), 10<<20),
		MaxOtherSize:      positiveInt64(v.GetInt64("MAX_OTHER_SIZE"), 100<<20),
		TelemetryWorkers:  v.GetInt("TELEMETRY_WORKERS"),
	}

	cfg.Cleanup = CleanupConfig{
		Enabled:     v.GetBool("CLEANUP_ENABLED"),
		Interval:    parseDuration(v.GetString("CLEANUP_INTERVAL"), time.Hour),
		OrphanGrace: parseDuration(v.GetString("CLEANUP_ORPHAN_GRACE"), 24*time.Hour),
		TempMaxAge:  parseDuration(v.GetString("CLEANUP_TEMP_MAX_AGE"), time.Hour),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_METADATA_CACHE"),
		TTL:     parseDuration(v.GetString("METADATA_CACHE_TTL"), 5*time.Minute),
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
	v.SetDefault("DB_NAME", "lms_media")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_ROOT", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "/uploads")
	v.SetDefault("MEDIA_TOKEN_SECRET", "dev_media_secret")
	v.SetDefault("MEDIA_TOKEN_TTL", "1h")
	v.SetDefault("CHECKSUM_ALGORITHM", "sha256")
	v.SetDefault("STREAM_CHUNK_SIZE", 1<<20)
	v.SetDefault("MAX_VIDEO_SIZE", 2<<30)
	v.SetDefault("MAX_DOCUMENT_SIZE", 50<<20)
	v.SetDefault("MAX_IMAGE_SIZE", 10<<20)
	v.SetDefault("MAX_OTHER_SIZE", 100<<20)
	v.SetDefault("TELEMETRY_WORKERS", 2)

	v.SetDefault("CLEANUP_ENABLED", true)
	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("CLEANUP_ORPHAN_GRACE", "24h")
	v.SetDefault("CLEANUP_TEMP_MAX_AGE", "1h")

	v.SetDefault("ENABLE_METADATA_CACHE", false)
	v.SetDefault("METADATA_CACHE_TTL", "5m")
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

func positiveInt64(value, fallback int64) int64 {
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
