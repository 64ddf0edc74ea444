package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full gateway configuration, populated from the
// environment. Defaults suit local development against a dev upstream.
type Config struct {
	ServerPort string `envconfig:"PORT" default:"8085"`

	Upstream struct {
		BaseURL string `envconfig:"UPSTREAM_BASE_URL" required:"true"`
		WSURL   string `envconfig:"UPSTREAM_WS_URL"`
		Token   string `envconfig:"UPSTREAM_TOKEN"`
	}

	Kafka struct {
		Brokers []string `envconfig:"KAFKA_BROKERS"`
		GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"courtsync"`
		Topics  []string `envconfig:"KAFKA_TOPICS" default:"booking.created,booking.updated,booking.cancelled"`
	}

	Security struct {
		JWTSecret    string `envconfig:"JWT_SECRET"`
		JWTPublicKey string `envconfig:"JWT_PUBLIC_KEY"`
	}

	Logging struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"text"`
		File   string `envconfig:"LOG_FILE"`
	}

	Sync struct {
		// ActiveClub scopes the booking store and event application to one
		// tenant. Empty means accept events for any club.
		ActiveClub     string        `envconfig:"ACTIVE_CLUB"`
		DebounceWindow time.Duration `envconfig:"SYNC_DEBOUNCE_WINDOW" default:"250ms"`
		MinBackoff     time.Duration `envconfig:"SYNC_MIN_BACKOFF" default:"1s"`
		MaxBackoff     time.Duration `envconfig:"SYNC_MAX_BACKOFF" default:"30s"`
		AutoConnect    bool          `envconfig:"SYNC_AUTO_CONNECT" default:"true"`
	}

	Storage struct {
		NotificationDB string `envconfig:"NOTIFICATION_DB" default:"notifications.db"`
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Upstream.WSURL == "" {
		cfg.Upstream.WSURL = deriveWSURL(cfg.Upstream.BaseURL)
	}
	return &cfg, nil
}

// deriveWSURL turns the REST base URL into the conventional websocket
// endpoint when UPSTREAM_WS_URL is not set explicitly.
func deriveWSURL(baseURL string) string {
	ws := baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimRight(ws, "/") + "/ws"
}
