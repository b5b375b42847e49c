// Package config loads the settings for one listening party session.
//
// Values come from defaults, then an optional YAML file named by
// PARTY_CONFIG, then the environment (including a .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Fetch sources for the party record.
const (
	SourceCoordinator = "coordinator"
	SourcePostgres    = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	PartyID  string    `yaml:"party_id"`
	Party    uuid.UUID `yaml:"-"`
	Source   string    `yaml:"source"`
	LogLevel string    `yaml:"log_level"`

	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	Feed        FeedConfig        `yaml:"feed"`
	Session     SessionConfig     `yaml:"session"`
}

type CoordinatorConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig configures lifecycle event publishing. An empty URL logs events
// instead of publishing them.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type FeedConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	ShareBaseURL string `yaml:"share_base_url"`
}

type SessionConfig struct {
	CountdownInterval time.Duration `yaml:"countdown_interval"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	UpdateInterval    time.Duration `yaml:"update_interval"`
	RequireGesture    bool          `yaml:"require_gesture"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Source:   SourceCoordinator,
		LogLevel: "info",
		Coordinator: CoordinatorConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Database: DefaultDatabaseConfig(),
		NATS: NATSConfig{
			Stream:        "PARTY_EVENTS",
			SubjectPrefix: "party.events",
		},
		Feed: FeedConfig{
			ListenAddr:   ":8080",
			ShareBaseURL: "http://localhost:3000",
		},
		Session: SessionConfig{
			CountdownInterval: time.Second,
			PollInterval:      5 * time.Second,
			UpdateInterval:    250 * time.Millisecond,
			RequireGesture:    true,
		},
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := Default()
	if path := os.Getenv("PARTY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.PartyID = getEnv("PARTY_ID", c.PartyID)
	c.Source = getEnv("PARTY_SOURCE", c.Source)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Coordinator.BaseURL = getEnv("COORDINATOR_URL", c.Coordinator.BaseURL)
	c.Coordinator.Timeout = getEnvAsDuration("COORDINATOR_TIMEOUT", c.Coordinator.Timeout)

	c.Database.applyEnv()

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Stream = getEnv("NATS_STREAM", c.NATS.Stream)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	if port := os.Getenv("PORT"); port != "" {
		c.Feed.ListenAddr = ":" + port
	}
	c.Feed.ListenAddr = getEnv("LISTEN_ADDR", c.Feed.ListenAddr)
	c.Feed.ShareBaseURL = getEnv("SHARE_BASE_URL", c.Feed.ShareBaseURL)

	c.Session.CountdownInterval = getEnvAsDuration("COUNTDOWN_INTERVAL", c.Session.CountdownInterval)
	c.Session.PollInterval = getEnvAsDuration("POLL_INTERVAL", c.Session.PollInterval)
	c.Session.UpdateInterval = getEnvAsDuration("MEDIA_UPDATE_INTERVAL", c.Session.UpdateInterval)
	c.Session.RequireGesture = getEnvAsBool("REQUIRE_GESTURE", c.Session.RequireGesture)
}

// Validate checks required fields and resolves the party id.
func (c *Config) Validate() error {
	if c.PartyID == "" {
		return fmt.Errorf("%w: PARTY_ID is required", ErrInvalidConfig)
	}
	id, err := uuid.Parse(c.PartyID)
	if err != nil {
		return fmt.Errorf("%w: party id %q: %v", ErrInvalidConfig, c.PartyID, err)
	}
	c.Party = id

	switch c.Source {
	case SourceCoordinator:
		if c.Coordinator.BaseURL == "" {
			return fmt.Errorf("%w: coordinator base url is required", ErrInvalidConfig)
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Level returns the zerolog level, defaulting to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
