package config

import (
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config holds every tunable of the console. Values resolve in order:
// struct defaults, then the optional YAML config file, then ROMSHELF_*
// environment variables.
type Config struct {
	// Catalog server the console synchronizes against.
	ServerURL   string `koanf:"server_url" default:"http://localhost:3690" validate:"required,url"`
	ServerToken string `koanf:"server_token"`

	// Job supervision.
	JobPollInterval time.Duration `koanf:"job_poll_interval" default:"1s" validate:"required"`

	// Log stream consumer.
	LogFlushDebounce time.Duration `koanf:"log_flush_debounce" default:"100ms" validate:"required"`
	LogMaxLines      int           `koanf:"log_max_lines" default:"2000" validate:"min=100"`

	// Table synchronizer. Row-count changes larger than this force a full
	// replace instead of delta patching.
	SyncRowThreshold int `koanf:"sync_row_threshold" default:"8" validate:"min=1"`

	// Match reconciliation.
	MatchPollInterval time.Duration `koanf:"match_poll_interval" default:"5s" validate:"required"`

	// Broadcast channel.
	ReconnectBackoff    time.Duration `koanf:"reconnect_backoff" default:"2s" validate:"required"`
	ReconnectBackoffMax time.Duration `koanf:"reconnect_backoff_max" default:"30s" validate:"required"`

	// Local preferences database.
	DatabaseFilePath          string        `koanf:"database_file_path" default:"./romshelf-console.sqlite" validate:"required"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5" validate:"min=1"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`

	// Local status API.
	StatusHost string `koanf:"status_host" default:"127.0.0.1"`
	StatusPort int    `koanf:"status_port" default:"3691" validate:"min=0,max=65535"`
}

const configFileENV = "ROMSHELF_CONFIG_FILE"

// New loads, layers, and validates the console configuration.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = "./romshelf.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file: %s", path)
		}
	}

	err := k.Load(env.Provider("ROMSHELF_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ROMSHELF_")
		return strings.ToLower(s)
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	return cfg, nil
}

// BroadcastURL derives the websocket endpoint for the broadcast channel
// from the configured server URL.
func (cfg *Config) BroadcastURL() string {
	return websocketURL(cfg.ServerURL) + "/channel"
}

// LogFeedURL derives the websocket endpoint for one job's log feed.
func (cfg *Config) LogFeedURL(jobID string) string {
	return websocketURL(cfg.ServerURL) + "/jobs/" + jobID + "/log"
}

func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}
