package client

import (
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds the auth server connection settings.
type Config struct {
	// BaseURL is the GoTrue-compatible server root, e.g. http://localhost:9999.
	BaseURL string `env:"AUTH_BASE_URL"`
	// RedirectURL is where the provider sends the browser back after an
	// OAuth authorization, e.g. http://localhost:3000/callback.
	RedirectURL string `env:"AUTH_REDIRECT_URL"`

	// HTTPClient overrides the default 10s-timeout client.
	HTTPClient *http.Client `env:"-"`
}

// ConfigFromEnv reads AUTH_BASE_URL and AUTH_REDIRECT_URL.
func ConfigFromEnv() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse auth client env")
	}
	return cfg, nil
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
