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

// Storage drivers for uploaded item images and dispatch artefacts.
const (
	StorageDriverLocal = "local"
	StorageDriverGCS   = "gcs"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	ItemMaster ItemMasterConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Cache      CacheConfig
	Batches    BatchConfig
	Dispatch   DispatchConfig
	Storage    StorageConfig
	Images     ImageConfig
	PubSub     PubSubConfig
	Console    ConsoleConfig
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

// ItemMasterConfig points at the merchandising item master (SQL Server).
type ItemMasterConfig struct {
	Enabled  bool
	Server   string
	Port     int
	User     string
	Password string
	Database string
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

// CacheConfig tunes Redis caching of reference data and record listings.
type CacheConfig struct {
	Enabled      bool
	ReferenceTTL time.Duration
	RecordsTTL   time.Duration
}

// BatchConfig controls locking around batch mutations.
type BatchConfig struct {
	LockTTL time.Duration
}

// DispatchConfig configures the worker pool that hands posted batches downstream.
type DispatchConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// StorageConfig selects where images and dispatch files are written.
type StorageConfig struct {
	Driver             string
	Dir                string
	GCSBucket          string
	GCSCredentialsJSON string
	// SignedURLTTL bounds the lifetime of image download links.
	SignedURLTTL time.Duration
}

// ImageConfig validates item images attached to records.
type ImageConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	ThumbnailWidth   int
}

// PubSubConfig enables batch.posted notifications.
type PubSubConfig struct {
	Enabled         bool
	ProjectID       string
	Topic           string
	CredentialsJSON string
}

// ConsoleConfig carries client-side workflow tuning.
type ConsoleConfig struct {
	BaseURL  string
	Debounce time.Duration
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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

	cfg.ItemMaster = ItemMasterConfig{
		Enabled:  v.GetBool("ITEM_MASTER_ENABLED"),
		Server:   v.GetString("ITEM_MASTER_SERVER"),
		Port:     v.GetInt("ITEM_MASTER_PORT"),
		User:     v.GetString("ITEM_MASTER_USER"),
		Password: v.GetString("ITEM_MASTER_PASSWORD"),
		Database: v.GetString("ITEM_MASTER_DATABASE"),
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

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("CACHE_ENABLED"),
		ReferenceTTL: parseDuration(v.GetString("CACHE_REFERENCE_TTL"), time.Hour),
		RecordsTTL:   parseDuration(v.GetString("CACHE_RECORDS_TTL"), 5*time.Minute),
	}

	cfg.Batches = BatchConfig{
		LockTTL: parseDuration(v.GetString("BATCH_LOCK_TTL"), 30*time.Second),
	}

	cfg.Dispatch = DispatchConfig{
		Workers:    v.GetInt("DISPATCH_WORKERS"),
		Retries:    v.GetInt("DISPATCH_RETRIES"),
		RetryDelay: parseDuration(v.GetString("DISPATCH_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Storage = StorageConfig{
		Driver:             strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:                v.GetString("STORAGE_DIR"),
		GCSBucket:          v.GetString("GCS_BUCKET"),
		GCSCredentialsJSON: v.GetString("GCS_CREDENTIALS_JSON"),
		SignedURLTTL:       parseDuration(v.GetString("FILE_URL_TTL"), 15*time.Minute),
	}

	maxImageSize := v.GetInt64("IMAGE_MAX_SIZE")
	if maxImageSize <= 0 {
		maxImageSize = 5 * 1024 * 1024
	}
	cfg.Images = ImageConfig{
		MaxFileSizeBytes: maxImageSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("IMAGE_ALLOWED_MIME_TYPES")),
		ThumbnailWidth:   v.GetInt("IMAGE_THUMBNAIL_WIDTH"),
	}

	cfg.PubSub = PubSubConfig{
		Enabled:         v.GetBool("PUBSUB_ENABLED"),
		ProjectID:       v.GetString("PUBSUB_PROJECT_ID"),
		Topic:           v.GetString("PUBSUB_TOPIC"),
		CredentialsJSON: v.GetString("PUBSUB_CREDENTIALS_JSON"),
	}

	cfg.Console = ConsoleConfig{
		BaseURL:  v.GetString("CONSOLE_BASE_URL"),
		Debounce: parseDuration(v.GetString("CONSOLE_DEBOUNCE"), 800*time.Millisecond),
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
	v.SetDefault("DB_NAME", "merch_batches")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ITEM_MASTER_ENABLED", false)
	v.SetDefault("ITEM_MASTER_SERVER", "localhost")
	v.SetDefault("ITEM_MASTER_PORT", 1433)
	v.SetDefault("ITEM_MASTER_USER", "sa")
	v.SetDefault("ITEM_MASTER_PASSWORD", "")
	v.SetDefault("ITEM_MASTER_DATABASE", "MMS")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_REFERENCE_TTL", "1h")
	v.SetDefault("CACHE_RECORDS_TTL", "5m")

	v.SetDefault("BATCH_LOCK_TTL", "30s")

	v.SetDefault("DISPATCH_WORKERS", 2)
	v.SetDefault("DISPATCH_RETRIES", 3)
	v.SetDefault("DISPATCH_RETRY_DELAY", "5s")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_DIR", "./storage")
	v.SetDefault("GCS_BUCKET", "")
	v.SetDefault("GCS_CREDENTIALS_JSON", "")
	v.SetDefault("FILE_URL_TTL", "15m")

	v.SetDefault("IMAGE_MAX_SIZE", 5*1024*1024)
	v.SetDefault("IMAGE_ALLOWED_MIME_TYPES", "image/jpeg,image/png")
	v.SetDefault("IMAGE_THUMBNAIL_WIDTH", 200)

	v.SetDefault("PUBSUB_ENABLED", false)
	v.SetDefault("PUBSUB_PROJECT_ID", "")
	v.SetDefault("PUBSUB_TOPIC", "merch-batch-posted")
	v.SetDefault("PUBSUB_CREDENTIALS_JSON", "")

	v.SetDefault("CONSOLE_BASE_URL", "http://localhost:8080/api/v1")
	v.SetDefault("CONSOLE_DEBOUNCE", "800ms")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
