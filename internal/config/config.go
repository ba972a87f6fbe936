package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIBaseURL         string `env:"API_BASE_URL" envDefault:"http://localhost:8090/api/v1"`
	WSBaseURL          string `env:"WS_BASE_URL" envDefault:""`
	HTTPTimeoutSeconds int    `env:"HTTP_TIMEOUT_SECONDS" envDefault:"15"`
	StatePath          string `env:"STATE_PATH" envDefault:"servigo.db"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`

	// DevAddr is only read by the development server binary.
	DevAddr string `env:"DEV_ADDR" envDefault:":8090"`
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// WSURL returns the websocket base URL, derived from the API base when
// WS_BASE_URL is not set explicitly.
func (c *Config) WSURL() string {
	if c.WSBaseURL != "" {
		return c.WSBaseURL
	}
	ws := strings.Replace(c.APIBaseURL, "http", "ws", 1)
	return strings.TrimSuffix(ws, "/") + "/ws"
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL scheme must be http or https, got %q", u.Scheme)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
