package graph

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the graph database connection settings. All fields have
// working defaults except URI; credentials come from the environment, never
// hardcoded (see internal/config).
type Config struct {
	URI      string // bolt:// or neo4j:// endpoint
	Username string
	Password string
	Database string // empty selects the server default

	MaxPoolSize           int           // bounded connection pool (default 50)
	ConnectionTimeout     time.Duration // per-connection acquisition bound (default 30s)
	MaxConnectionLifetime time.Duration // default 1h
	Encrypted             bool          // upgrade the URI scheme to +s

	QueryTimeout time.Duration // per-call bound, overridable per query (default 60s)

	// Connection retry policy: delay = BaseDelay * BackoffFactor^(attempt-1),
	// bounded by MaxRetries attempts.
	MaxRetries    int           // default 5
	BaseDelay     time.Duration // default 1s
	BackoffFactor float64       // default 2.0
}

const (
	defaultMaxPoolSize           = 50
	defaultConnectionTimeout     = 30 * time.Second
	defaultMaxConnectionLifetime = time.Hour
	defaultQueryTimeout          = 60 * time.Second
	defaultMaxRetries            = 5
	defaultBaseDelay             = time.Second
	defaultBackoffFactor         = 2.0
)

// withDefaults returns a copy with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = defaultConnectionTimeout
	}
	if c.MaxConnectionLifetime == 0 {
		c.MaxConnectionLifetime = defaultMaxConnectionLifetime
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = defaultBackoffFactor
	}
	return c
}

// Validate checks the configuration at construction time.
func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("graph config: URI is required")
	}
	if c.MaxPoolSize < 0 {
		return fmt.Errorf("graph config: MaxPoolSize must not be negative, got %d", c.MaxPoolSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("graph config: MaxRetries must not be negative, got %d", c.MaxRetries)
	}
	if c.BackoffFactor < 0 {
		return fmt.Errorf("graph config: BackoffFactor must not be negative, got %g", c.BackoffFactor)
	}
	return nil
}

// endpoint returns the URI, upgraded to an encrypted scheme when requested.
func (c Config) endpoint() string {
	if !c.Encrypted || strings.Contains(c.URI, "+s") {
		return c.URI
	}
	if i := strings.Index(c.URI, "://"); i > 0 {
		return c.URI[:i] + "+s" + c.URI[i:]
	}
	return c.URI
}

// backoffDelay returns the sleep before retrying a failed attempt
// (1-based).
func (c Config) backoffDelay(attempt int) time.Duration {
	delay := float64(c.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.BackoffFactor
	}
	return time.Duration(delay)
}
