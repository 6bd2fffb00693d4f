// Package graph owns the pooled connection to the external graph database.
// It enforces the retry/backoff discipline, per-call query timeouts and
// batched, per-type writes; everything above it talks entities and
// relationships, never Cypher strings (except the explicit pass-through).
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jcfg "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConnectivityError wraps an initial-connection failure after the retry
// budget is exhausted.
type ConnectivityError struct {
	Attempts int
	Last     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("could not connect after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ConnectivityError) Unwrap() error { return e.Last }

// Client is safe for concurrent use: the pooled driver is the only shared
// state and the pool owns connection checkout/return. The client provides no
// cross-call mutual exclusion; concurrent ingestion runs against the same
// target must be serialized by the caller.
type Client struct {
	cfg    Config
	driver neo4j.DriverWithContext
	tracer trace.Tracer

	// seams for tests; production values set in New
	dial  func(ctx context.Context, cfg Config) (neo4j.DriverWithContext, error)
	exec  func(ctx context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error)
	sleep func(d time.Duration)
}

// New builds an unconnected client. No I/O happens until Connect.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg.withDefaults(),
		tracer: otel.Tracer("codegraph/graph"),
		dial:   dialNeo4j,
		sleep:  time.Sleep,
	}
	c.exec = c.sessionExec
	return c, nil
}

// Connect establishes the pooled connection, retrying transient connectivity
// failures with exponential backoff. Non-connectivity errors (bad URI,
// auth/usage errors) fail immediately.
func (c *Client) Connect(ctx context.Context) error {
	var last error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		driver, err := c.dial(ctx, c.cfg)
		if err == nil {
			c.driver = driver
			slog.Info("graph.connected", "uri", c.cfg.endpoint(), "attempt", attempt)
			return nil
		}
		last = err
		if !isConnectivity(err) {
			return err
		}
		if attempt < c.cfg.MaxRetries {
			delay := c.cfg.backoffDelay(attempt)
			slog.Warn("graph.connect.retry", "attempt", attempt, "delay", delay, "err", err)
			c.sleep(delay)
		}
	}
	return &ConnectivityError{Attempts: c.cfg.MaxRetries, Last: last}
}

// Connect is the usual construction path: build and connect in one call.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases the connection pool.
func (c *Client) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

// QueryOption overrides per-call query behavior.
type QueryOption func(*queryOptions)

type queryOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the configured per-call query timeout.
func WithTimeout(d time.Duration) QueryOption {
	return func(o *queryOptions) { o.timeout = d }
}

// Run executes a parameterized write query with the per-call timeout,
// retrying once on a transient server-side error. Programming errors (bad
// Cypher, type errors) propagate immediately.
func (c *Client) Run(ctx context.Context, cypher string, params map[string]any, opts ...QueryOption) ([]map[string]any, error) {
	return c.query(ctx, cypher, params, true, opts...)
}

// Read executes a parameterized read query under the same timeout and retry
// policy as Run. This is also the raw pass-through surface for consumers
// whose queries are not covered by the prefetch shapes.
func (c *Client) Read(ctx context.Context, cypher string, params map[string]any, opts ...QueryOption) ([]map[string]any, error) {
	return c.query(ctx, cypher, params, false, opts...)
}

func (c *Client) query(ctx context.Context, cypher string, params map[string]any, write bool, opts ...QueryOption) ([]map[string]any, error) {
	o := queryOptions{timeout: c.cfg.QueryTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := c.tracer.Start(ctx, "graph.query", trace.WithAttributes(
		attribute.Bool("write", write),
	))
	defer span.End()

	qctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	rows, err := c.exec(qctx, cypher, params, write)
	if err != nil && isTransient(err) {
		delay := c.cfg.backoffDelay(1)
		slog.Warn("graph.query.retry", "delay", delay, "err", err)
		c.sleep(delay)

		rctx, rcancel := context.WithTimeout(ctx, o.timeout)
		defer rcancel()
		rows, err = c.exec(rctx, cypher, params, write)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rows, nil
}

// sessionExec runs one query on a fresh session from the pool.
func (c *Client) sessionExec(ctx context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error) {
	mode := neo4j.AccessModeRead
	if write {
		mode = neo4j.AccessModeWrite
	}
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.cfg.Database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

// dialNeo4j creates the pooled driver and verifies connectivity within the
// configured connection timeout.
func dialNeo4j(ctx context.Context, cfg Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.endpoint(),
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(conf *neo4jcfg.Config) {
			conf.MaxConnectionPoolSize = cfg.MaxPoolSize
			conf.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
			conf.MaxConnectionLifetime = cfg.MaxConnectionLifetime
		},
	)
	if err != nil {
		return nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return driver, nil
}

// isTransient classifies server-side errors worth one retry: session expiry
// and service-unavailable class failures.
func isTransient(err error) bool {
	return neo4j.IsRetryable(err)
}

// isConnectivity classifies initial-connection failures worth the backoff
// loop. Usage errors and non-retryable server responses are programming or
// configuration mistakes and are never retried.
func isConnectivity(err error) bool {
	if neo4j.IsRetryable(err) {
		return true
	}
	var usageErr *neo4j.UsageError
	if errors.As(err, &usageErr) {
		return false
	}
	var serverErr *db.Neo4jError
	if errors.As(err, &serverErr) {
		return false
	}
	// anything else is transport-level: refused, DNS, I/O
	return true
}
