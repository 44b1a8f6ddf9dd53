// Package config reads HerbTrace settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"crypto/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration shared by the server and the worker.
type Config struct {
	Address   string
	PublicURL string
	LogLevel  string

	// DatabaseURL selects the Postgres store when set.
	DatabaseURL string

	// RedisAddr selects the asynq publisher when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Workers       int

	// S3Endpoint selects the MinIO archive when set.
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Region      string
	S3UseSSL      bool
	ArchiveBucket string

	SigningSecret []byte
	LabelTTL      time.Duration

	RateLimit float64
	RateBurst int
}

const (
	defaultAddress   = ":3001"
	defaultPublicURL = "http://localhost:3001"
	defaultLogLevel  = "info"
	defaultWorkers   = 2
	defaultBucket    = "herbtrace-events"
	defaultRegion    = "us-east-1"
	defaultLabelTTL  = 30 * 24 * time.Hour
	defaultRateLimit = 20
	defaultRateBurst = 40
)

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (*Config, error) {
	// godotenv.Load never overrides variables already set in the process
	// environment, so real env vars always win over the .env file.
	_ = godotenv.Load()
	cfg := &Config{
		Address:       listenAddress(),
		PublicURL:     strings.TrimRight(readEnv("HERBTRACE_PUBLIC_URL", defaultPublicURL), "/"),
		LogLevel:      readEnv("HERBTRACE_LOG_LEVEL", defaultLogLevel),
		DatabaseURL:   readEnv("HERBTRACE_DATABASE_URL", ""),
		RedisAddr:     readEnv("HERBTRACE_REDIS_ADDR", ""),
		RedisPassword: readEnv("HERBTRACE_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("HERBTRACE_REDIS_DB", 0),
		Workers:       parseInt("HERBTRACE_WORKERS", defaultWorkers),
		S3Endpoint:    readEnv("HERBTRACE_S3_ENDPOINT", ""),
		S3AccessKey:   readEnv("HERBTRACE_S3_ACCESS_KEY", ""),
		S3SecretKey:   readEnv("HERBTRACE_S3_SECRET_KEY", ""),
		S3Region:      readEnv("HERBTRACE_S3_REGION", defaultRegion),
		S3UseSSL:      parseBool("HERBTRACE_S3_USE_SSL", false),
		ArchiveBucket: readEnv("HERBTRACE_ARCHIVE_BUCKET", defaultBucket),
		SigningSecret: parseSecret("HERBTRACE_SIGNING_SECRET"),
		LabelTTL:      parseDuration("HERBTRACE_LABEL_TTL", defaultLabelTTL),
		RateLimit:     parseFloat("HERBTRACE_RATE_LIMIT", defaultRateLimit),
		RateBurst:     parseInt("HERBTRACE_RATE_BURST", defaultRateBurst),
	}
	if cfg.SigningSecret == nil {
		// Without a configured secret, labels only verify until the process
		// restarts.
		cfg.SigningSecret = randomSecret()
	}
	// Non-positive values would stall the pool or reject every request, so
	// they fall back to the defaults just like unparsable ones.
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.LabelTTL <= 0 {
		cfg.LabelTTL = defaultLabelTTL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	return cfg, nil
}

// listenAddress prefers PORT, which hosting platforms set, then
// HERBTRACE_ADDRESS.
func listenAddress() string {
	if port := readEnv("PORT", ""); port != "" {
		// PORT is a bare number; net/http wants host:port, and an empty host
		// listens on every interface.
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		return port
	}
	return readEnv("HERBTRACE_ADDRESS", defaultAddress)
}

func readEnv(key, def string) string {
	// LookupEnv separates "unset" from "set to empty"; both fall back here.
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		// Invalid input is ignored and the default returned.
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		// time.ParseDuration understands inputs like "720h" or "90m".
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	// 32 bytes matches the SHA-256 output size used by the signer.
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte("herbtrace-fallback-secret")
	}
	return buf
}
