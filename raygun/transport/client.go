package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/sthembisoo/raygun4go/raygun/messages"
)

// Client posts crash entries to Raygun.
type Client struct {
	cfg  Config
	http *resty.Client
}

// New validates cfg and creates a Client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("X-ApiKey", cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &Client{cfg: cfg, http: client}, nil
}

// Send posts msg. Raygun answers 202 Accepted for stored entries.
func (c *Client) Send(ctx context.Context, msg *messages.Message) error {
	if msg == nil {
		return fmt.Errorf("nothing to send")
	}

	response, err := c.http.R().
		SetContext(ctx).
		SetBody(msg).
		Post(c.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to send entry: %w", err)
	}

	if response.StatusCode() != http.StatusAccepted {
		return &StatusError{StatusCode: response.StatusCode(), Body: string(response.Body())}
	}
	return nil
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("raygun API returned status %d: %s", e.StatusCode, e.Body)
}
