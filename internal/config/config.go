package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"serverguard.keepalive/internal/core/logger"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Server
	HTTPPort  string
	PublicDir string

	// Keep-alive
	BaseURL      string
	PingPath     string
	PingInterval time.Duration
	UptimeTick   time.Duration
	PingTimeout  time.Duration // 0 bounds each probe by services.DefaultProbeTimeout
	LogCapacity  int
	AutoStart    bool
	AssetsFile   string

	// Log fan-out, disabled when empty
	RedisURL        string
	RedisChannel    string
	MQTTBroker      string
	MQTTTopicPrefix string

	// API
	APIRatePerMinute int
	APIRateBurst     int

	// Logging
	LogLevel  slog.Level
	LogFormat string // "json" or "text"

	// Tracing
	OTLPEndpoint string
	ServiceName  string

	// Features
	EnableMetrics bool
	EnableTracing bool
}

func Load() (*Config, error) {
	var errs []error

	port := getEnv("HTTP_PORT", "8080")
	cfg := &Config{
		HTTPPort:         port,
		PublicDir:        getEnv("PUBLIC_DIR", "./public"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:"+port),
		PingPath:         getEnv("PING_PATH", "/cover-card.png"),
		PingInterval:     getEnvDuration("PING_INTERVAL", 30*time.Second, &errs),
		UptimeTick:       getEnvDuration("UPTIME_TICK", time.Second, &errs),
		PingTimeout:      getEnvDuration("PING_TIMEOUT", 0, &errs),
		LogCapacity:      getEnvInt("LOG_CAPACITY", 50, &errs),
		AutoStart:        getEnvBool("AUTO_START", true),
		AssetsFile:       getEnv("ASSETS_FILE", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisChannel:     getEnv("REDIS_CHANNEL", "serverguard:logs"),
		MQTTBroker:       getEnv("MQTT_BROKER", ""),
		MQTTTopicPrefix:  getEnv("MQTT_TOPIC_PREFIX", "serverguard"),
		APIRatePerMinute: getEnvInt("API_RATE_PER_MINUTE", 60, &errs),
		APIRateBurst:     getEnvInt("API_RATE_BURST", 10, &errs),
		LogLevel:         logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		ServiceName:      getEnv("SERVICE_NAME", "serverguard"),
		EnableMetrics:    getEnvBool("ENABLE_METRICS", true),
		EnableTracing:    getEnvBool("ENABLE_TRACING", false),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks values Load cannot reject on its own.
func Validate(cfg *Config) error {
	if cfg.PingInterval <= 0 {
		return fmt.Errorf("%w: PING_INTERVAL must be > 0", ErrInvalid)
	}
	if cfg.UptimeTick <= 0 {
		return fmt.Errorf("%w: UPTIME_TICK must be > 0", ErrInvalid)
	}
	if cfg.PingTimeout < 0 {
		return fmt.Errorf("%w: PING_TIMEOUT must be >= 0", ErrInvalid)
	}
	if cfg.LogCapacity <= 0 {
		return fmt.Errorf("%w: LOG_CAPACITY must be > 0", ErrInvalid)
	}
	if cfg.APIRatePerMinute <= 0 || cfg.APIRateBurst <= 0 {
		return fmt.Errorf("%w: API rate limit must be > 0", ErrInvalid)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: BASE_URL: %v", ErrInvalid, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: BASE_URL must be an absolute http(s) url, got %q", ErrInvalid, cfg.BaseURL)
	}
	if cfg.PingPath == "" {
		return fmt.Errorf("%w: PING_PATH is required", ErrInvalid)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, value))
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, key, value))
		return defaultValue
	}
	return parsed
}
