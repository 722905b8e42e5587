// Package config loads engine settings from environment variables (and
// parses an optional YAML seed file of job boards), generalizing
// cmd/server/main.go's getEnv helper into a layered settings struct per
// spec.md §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every environment-configurable engine setting.
type Config struct {
	MaxConcurrentJobs        int
	DefaultRateLimitDelayS   int
	DefaultRequestTimeoutS   int
	SchedulerTickMS          int
	HeartbeatIntervalS       int
	GracefulShutdownTimeoutS int
	AuthSecret               string
	StoreConnectionString    string
	LogLevel                 string
	HTTPAddr                 string
	BoardsSeedFile           string
}

// Load reads .env (if present, via godotenv) then the process
// environment, applying spec.md §6's documented defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		MaxConcurrentJobs:        getEnvInt("MAX_CONCURRENT_JOBS", 5),
		DefaultRateLimitDelayS:   getEnvInt("DEFAULT_RATE_LIMIT_DELAY_S", 6),
		DefaultRequestTimeoutS:   getEnvInt("DEFAULT_REQUEST_TIMEOUT_S", 30),
		SchedulerTickMS:          getEnvInt("SCHEDULER_TICK_MS", 1000),
		HeartbeatIntervalS:       getEnvInt("HEARTBEAT_INTERVAL_S", 10),
		GracefulShutdownTimeoutS: getEnvInt("GRACEFUL_SHUTDOWN_TIMEOUT_S", 30),
		AuthSecret:               getEnv("AUTH_SECRET", ""),
		StoreConnectionString:    getEnv("STORE_CONNECTION_STRING", "postgres://localhost/autoscraper?sslmode=disable"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8081"),
		BoardsSeedFile:           getEnv("BOARDS_SEED_FILE", ""),
	}
}

// SchedulerTick returns SchedulerTickMS as a time.Duration.
func (c Config) SchedulerTick() time.Duration { return time.Duration(c.SchedulerTickMS) * time.Millisecond }

// HeartbeatInterval returns HeartbeatIntervalS as a time.Duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalS) * time.Second
}

// GracefulShutdownTimeout returns GracefulShutdownTimeoutS as a time.Duration.
func (c Config) GracefulShutdownTimeout() time.Duration {
	return time.Duration(c.GracefulShutdownTimeoutS) * time.Second
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// BoardDefaults is one job-board entry of a YAML boards seed file, letting
// operators seed job boards without hitting the Control API for bulk setup.
type BoardDefaults struct {
	Name            string            `yaml:"name"`
	Type            string            `yaml:"type"`
	BaseURL         string            `yaml:"base_url"`
	RSSURL          string            `yaml:"rss_url,omitempty"`
	Selectors       map[string]string `yaml:"selectors,omitempty"`
	RateLimitDelayS int               `yaml:"rate_limit_delay_s"`
	MaxPages        int               `yaml:"max_pages"`
	CronExpression  string            `yaml:"cron_expression,omitempty"`
	Timezone        string            `yaml:"timezone,omitempty"`
}

// BoardsFile is the top-level shape of a YAML job-board seed file.
type BoardsFile struct {
	Boards []BoardDefaults `yaml:"boards"`
}

// LoadBoardsFile parses a YAML file of BoardDefaults for initial seeding.
func LoadBoardsFile(path string) (BoardsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BoardsFile{}, fmt.Errorf("config: read boards file: %w", err)
	}
	var f BoardsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return BoardsFile{}, fmt.Errorf("config: parse boards file: %w", err)
	}
	return f, nil
}
