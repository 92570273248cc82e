package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config holds all configuration values from environment.
type Config struct {
	AppPort        string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSSL       bool
	RedisHost      string // empty disables the advisory reference-set cache
	RedisPort      string

	// Duplicate detection policy. The submit-time radius blocks a
	// submission; the monitor radius only produces an advisory warning
	// while the visitor is still filling the form.
	SubmitRadiusMeters  float64 // default 50
	MonitorRadiusMeters float64 // default 100

	// Throttling of background location checks.
	CheckInterval        time.Duration // min time between store checks (default 5s)
	MonitorMovementMin   float64       // meters a fix must move before re-checking (default 10)
	WatchMovementMin     float64       // meters a watch fix must move to be forwarded (default 5)

	// Location acquisition.
	LocationTimeout time.Duration // primary fix timeout (default 15s)
	FallbackTimeout time.Duration // relaxed submit-time fallback (default 5s)
	FallbackMaxAge  time.Duration // acceptable cached-fix age for the fallback (default 60s)
	SettleDelay     time.Duration // delay before the permission modal fires its request (default 500ms)

	SessionTTL time.Duration // idle form sessions are reaped after this (default 30m)
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	minioSSL := false
	if sslEnv := os.Getenv("MINIO_SSL"); sslEnv != "" {
		val, err := strconv.ParseBool(sslEnv)
		if err != nil {
			return nil, fmt.Errorf("invalid MINIO_SSL value: %v", err)
		}
		minioSSL = val
	}

	cfg := &Config{
		AppPort:        os.Getenv("APP_PORT"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         os.Getenv("DB_PORT"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		MinioSSL:       minioSSL,
		RedisHost:      os.Getenv("REDIS_HOST"),
		RedisPort:      os.Getenv("REDIS_PORT"),

		SubmitRadiusMeters:  floatEnv("SUBMIT_RADIUS_METERS", 50),
		MonitorRadiusMeters: floatEnv("MONITOR_RADIUS_METERS", 100),
		CheckInterval:       durationEnv("CHECK_INTERVAL", 5*time.Second),
		MonitorMovementMin:  floatEnv("MONITOR_MOVEMENT_METERS", 10),
		WatchMovementMin:    floatEnv("WATCH_MOVEMENT_METERS", 5),
		LocationTimeout:     durationEnv("LOCATION_TIMEOUT", 15*time.Second),
		FallbackTimeout:     durationEnv("FALLBACK_TIMEOUT", 5*time.Second),
		FallbackMaxAge:      durationEnv("FALLBACK_MAX_AGE", 60*time.Second),
		SettleDelay:         durationEnv("SETTLE_DELAY", 500*time.Millisecond),
		SessionTTL:          durationEnv("SESSION_TTL", 30*time.Minute),
	}

	// Basic validation for required fields
	if cfg.DBHost == "" || cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("database configuration is incomplete")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
		return nil, fmt.Errorf("minio configuration is incomplete")
	}
	if cfg.SubmitRadiusMeters <= 0 || cfg.MonitorRadiusMeters <= 0 {
		return nil, fmt.Errorf("duplicate radius must be positive")
	}
	return cfg, nil
}

func floatEnv(key string, def float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if env := os.Getenv(key); env != "" {
		if val, err := time.ParseDuration(env); err == nil {
			return val
		}
	}
	return def
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return db, nil
}
