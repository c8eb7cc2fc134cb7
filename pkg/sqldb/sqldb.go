// Package sqldb wraps a bun/Postgres connection as the SQL agent's
// backend: run one statement, dump the information schema, probe and
// reconnect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

const schemaQuery = "SELECT table_schema, table_name, column_name, data_type " +
	"FROM information_schema.columns " +
	"WHERE table_schema NOT IN ('pg_catalog', 'information_schema') " +
	"ORDER BY table_schema, table_name, ordinal_position"

type Config struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Client implements contract.RelationalDB. The handle reconnects lazily:
// Reconnect swaps in a fresh connection under the mutex, so concurrent
// requests always see a usable *bun.DB.
type Client struct {
	dsn     string
	timeout time.Duration

	mu sync.Mutex
	db *bun.DB
}

var _ contractx.RelationalDB = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{dsn: dsn, timeout: timeout}
	client.db = client.open()
	return client, nil
}

// OpenDB opens a standalone bun handle for callers that manage their own
// lifecycle, such as the session store.
func OpenDB(cfg Config) (*bun.DB, error) {
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return client.current(), nil
}

func (c *Client) open() *bun.DB {
	conn := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(c.dsn),
		pgdriver.WithTimeout(c.timeout),
	))
	return bun.NewDB(conn, pgdialect.New())
}

func (c *Client) current() *bun.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Run executes one statement and returns the rows rendered as a list of
// tuples, the representation the answer-synthesis prompt consumes.
func (c *Client) Run(ctx context.Context, query string) (string, error) {
	rows, err := c.current().QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrBackendUnavailable, err)
	}
	defer rows.Close()
	return formatRows(rows)
}

// Schema returns every (schema, table, column, type) tuple of the database.
func (c *Client) Schema(ctx context.Context) (string, error) {
	return c.Run(ctx, schemaQuery)
}

// Ping issues the trivial probe.
func (c *Client) Ping(ctx context.Context) error {
	var one int
	if err := c.current().QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrBackendUnavailable, err)
	}
	return nil
}

// Reconnect discards the current handle and opens a fresh one.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	old := c.db
	c.db = c.open()
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return c.Ping(ctx)
}

func formatRows(rows *sql.Rows) (string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("read columns: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("[")
	first := true
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("scan row: %w", err)
		}

		parts := make([]string, len(cols))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			parts[i] = fmt.Sprintf("%v", v)
		}
		if !first {
			sb.WriteString(", ")
		}
		sb.WriteString("(" + strings.Join(parts, ", ") + ")")
		first = false
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate rows: %w", err)
	}
	sb.WriteString("]")
	return sb.String(), nil
}
