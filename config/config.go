package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendMemory   = "memory"

	CacheBackendMemory = "memory"
	CacheBackendValkey = "valkey"
	CacheBackendNone   = "none"
)

type Config struct {
	AppEnv   string
	Host     string
	Port     string
	LogLevel string

	AWSRegion   string
	AWSEndpoint string

	QuestionsTable string
	BookmarksTable string
	ReviewsTable   string

	StoreBackend string
	StoreTimeout time.Duration

	CacheBackend   string
	CacheTTL       time.Duration
	ValkeyAddress  string
	ValkeyPassword string
	ValkeyTLS      bool

	JWTSecret string

	WatchQuestionStream bool
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "dev"),
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "4000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "ap-northeast-2"),
		AWSEndpoint:    os.Getenv("AWS_ENDPOINT"),
		QuestionsTable: getEnv("DYNAMODB_TABLE_NAME", "QuizNox_Questions"),
		BookmarksTable: getEnv("DYNAMODB_BOOKMARKS_TABLE_NAME", "QuizNox_Bookmarks"),
		ReviewsTable:   getEnv("DYNAMODB_REVIEWS_TABLE_NAME", "QuizNox_Reviews"),
		StoreBackend:   getEnv("STORE_BACKEND", StoreBackendDynamoDB),
		CacheBackend:   getEnv("CACHE_BACKEND", CacheBackendMemory),
		ValkeyAddress:  os.Getenv("VALKEY_INIT_ADDRESS"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
	}

	var err error
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ValkeyTLS, err = getBool("VALKEY_TLS", false); err != nil {
		return nil, err
	}
	if cfg.WatchQuestionStream, err = getBool("WATCH_QUESTION_STREAM", false); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case StoreBackendDynamoDB, StoreBackendMemory:
	default:
		return nil, fmt.Errorf("[Config] unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.CacheBackend {
	case CacheBackendMemory, CacheBackendNone:
	case CacheBackendValkey:
		if cfg.ValkeyAddress == "" {
			return nil, fmt.Errorf("[Config] CACHE_BACKEND=valkey requires VALKEY_INIT_ADDRESS")
		}
	default:
		return nil, fmt.Errorf("[Config] unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("[Config] invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("[Config] invalid %s: %w", key, err)
	}
	return b, nil
}
