package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	DatabaseURL  string
	SoilTableTTL time.Duration

	// OpenWeather forecast configuration.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	ForecastEnabled    bool
	ForecastTimeout    time.Duration
	ForecastCacheTTL   time.Duration

	// Alert notification configuration.
	NotifyURLs    []string
	NotifyTimeout time.Duration

	// Redis-backed notification cooldown.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AlertCooldown time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	forecastTimeout, err := parsePositiveDuration("FORECAST_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	forecastCacheTTL, err := parsePositiveDuration("FORECAST_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	soilTableTTL, err := parsePositiveDuration("SOIL_TABLE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := parsePositiveDuration("NOTIFY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	alertCooldown, err := parsePositiveDuration("ALERT_COOLDOWN", "30m")
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	forecastEnabled := apiKey != ""
	if v := os.Getenv("FORECAST_ENABLED"); v != "" {
		forecastEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "soil-telemetry"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "soil-risk-assessments"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "erowatch"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SoilTableTTL: soilTableTTL,

		OpenWeatherAPIKey:  apiKey,
		OpenWeatherBaseURL: sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		ForecastEnabled:    forecastEnabled,
		ForecastTimeout:    forecastTimeout,
		ForecastCacheTTL:   forecastCacheTTL,

		NotifyURLs:    splitList(os.Getenv("NOTIFY_URLS")),
		NotifyTimeout: notifyTimeout,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		AlertCooldown: alertCooldown,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.ForecastEnabled && cfg.OpenWeatherAPIKey == "" {
		return nil, errors.New("FORECAST_ENABLED is true but OPENWEATHER_API_KEY is not set")
	}

	return cfg, nil
}

// NotificationsEnabled reports whether at least one notification URL is set.
func (c *Config) NotificationsEnabled() bool {
	return len(c.NotifyURLs) > 0
}

// DedupEnabled reports whether a Redis address is configured.
func (c *Config) DedupEnabled() bool {
	return c.RedisAddr != ""
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
