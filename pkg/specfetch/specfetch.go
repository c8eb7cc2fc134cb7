// Package specfetch is a REST client that retrieves raw OpenAPI/Swagger
// documents for the API agent.
package specfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

const maxSpecSizeBytes = 8 << 20

type Config struct {
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Client implements contract.SpecFetcher.
type Client struct {
	token      string
	httpClient *http.Client
}

var _ contractx.SpecFetcher = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Fetch downloads the raw document at the given URL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	specURL := strings.TrimSpace(rawURL)
	if specURL == "" {
		return nil, errors.New("spec url is required")
	}
	if _, err := url.ParseRequestURI(specURL); err != nil {
		return nil, fmt.Errorf("invalid spec url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, specURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build spec request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSpecSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read spec response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: spec http status=%d url=%s", contractx.ErrBackendUnavailable, resp.StatusCode, specURL)
	}
	return raw, nil
}
