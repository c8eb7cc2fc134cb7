// Package vectorsearch is a REST client for an Azure-AI-Search-style
// vector index: one search endpoint per index, api-key auth, top-k hits.
package vectorsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

const (
	defaultAPIVersion    = "2024-07-01"
	maxResponseSizeBytes = 4 << 20
)

type Config struct {
	Endpoint   string        `envconfig:"ENDPOINT" split_words:"true" required:"true"`
	APIKey     string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Index      string        `envconfig:"INDEX" split_words:"true" required:"true"`
	APIVersion string        `envconfig:"API_VERSION" split_words:"true"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// Client implements contract.VectorIndex over the index's REST search API.
type Client struct {
	endpoint   string
	apiKey     string
	index      string
	apiVersion string
	httpClient *http.Client
}

var _ contractx.VectorIndex = (*Client)(nil)

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
		return nil, errors.New("vector search endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid vector search endpoint: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("vector search api key is required")
	}
	if strings.TrimSpace(cfg.Index) == "" {
		return nil, errors.New("vector search index is required")
	}

	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		index:      strings.TrimSpace(cfg.Index),
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type searchRequest struct {
	Search string `json:"search"`
	Top    int    `json:"top"`
}

type searchResponse struct {
	Value []searchHit `json:"value"`
}

type searchHit struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// SimilaritySearch returns the top-k hits in index order; no re-ranking.
func (c *Client) SimilaritySearch(ctx context.Context, query string, k int) ([]contractx.Document, error) {
	if k <= 0 {
		k = 3
	}

	body, err := json.Marshal(searchRequest{Search: query, Top: k})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	searchURL := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		c.endpoint, url.PathEscape(c.index), url.QueryEscape(c.apiVersion))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: search http status=%d body=%s", contractx.ErrBackendUnavailable, resp.StatusCode, string(raw))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]contractx.Document, 0, len(parsed.Value))
	for _, hit := range parsed.Value {
		docs = append(docs, contractx.Document{
			Content:  hit.Content,
			Metadata: hit.Metadata,
		})
	}
	return docs, nil
}
