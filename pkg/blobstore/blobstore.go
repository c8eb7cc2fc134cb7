// Package blobstore is a REST client for a blob/object store exposing
// containers of keyed blobs over plain HTTP GET.
package blobstore

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

const maxBlobSizeBytes = 32 << 20

type Config struct {
	Endpoint string        `envconfig:"ENDPOINT" split_words:"true" required:"true"`
	Token    string        `envconfig:"TOKEN" split_words:"true"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Client implements contract.BlobStore.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

var _ contractx.BlobStore = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("blob store endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid blob store endpoint: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		endpoint:   endpoint,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Endpoint returns the base URL; the CSV agent embeds it in its code
// generation prompt so generated scripts can fetch the same files.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Get fetches one blob by container and key.
func (c *Client) Get(ctx context.Context, container, key string) ([]byte, error) {
	if strings.TrimSpace(container) == "" {
		return nil, errors.New("blob container is required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("blob key is required")
	}

	blobURL := fmt.Sprintf("%s/%s/%s", c.endpoint, url.PathEscape(container), url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, blobURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build blob request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read blob response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: blob http status=%d container=%s key=%s", contractx.ErrBackendUnavailable, resp.StatusCode, container, key)
	}
	return raw, nil
}
