// Package transport talks to the Raygun HTTP APIs: it posts crash entries
// and reads back applications, error groups and their latest reports.
package transport

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	DefaultEndpoint = "https://api.raygun.com/entries"
	DefaultAPIBase  = "https://api.raygun.com/v3"
	DefaultTimeout  = 10 * time.Second

	// APIKeyEnv holds the application API key used to post entries.
	APIKeyEnv = "RAYGUN_APIKEY"
	// TokenEnv holds the personal access token used by the read API.
	TokenEnv = "RAYGUN_TOKEN"
)

var ErrMissingCredentials = errors.New("missing raygun credentials")

// Config configures a Client.
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// ConfigFromEnv returns the default configuration with the API key taken
// from RAYGUN_APIKEY.
func ConfigFromEnv() Config {
	return Config{APIKey: os.Getenv(APIKeyEnv)}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: use --api-key flag or set %s environment variable", ErrMissingCredentials, APIKeyEnv)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", c.Endpoint)
	}
	return nil
}
