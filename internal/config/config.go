// Package config layers run configuration from three sources: built-in
// defaults, an optional .codegraph.yml in the repository, and environment
// variables. Environment always wins.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codegraphhq/codegraph/internal/graph"
)

// FileName is the optional per-repository configuration file.
const FileName = ".codegraph.yml"

// Config is the resolved run configuration.
type Config struct {
	Graph          graph.Config
	CachePath      string
	Workers        int
	FlushThreshold int
	Include        []string
	Ignore         []string
	LogLevel       string
}

// fileConfig is the YAML shape of .codegraph.yml.
type fileConfig struct {
	Graph struct {
		URI      string `yaml:"uri"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"graph"`
	CachePath      string   `yaml:"cache_path"`
	Workers        int      `yaml:"workers"`
	FlushThreshold int      `yaml:"flush_threshold"`
	Include        []string `yaml:"include"`
	Ignore         []string `yaml:"ignore"`
	LogLevel       string   `yaml:"log_level"`
}

// Load resolves configuration for a repository. A missing YAML file is fine;
// a malformed one is an error. A .env alongside the working directory is
// loaded first so env lookups see it.
func Load(repoPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Graph: graph.Config{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		CachePath: filepath.Join(repoPath, ".codegraph", "cache.json"),
		LogLevel:  "info",
	}

	if err := applyFile(cfg, filepath.Join(repoPath, FileName)); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	setString(&cfg.Graph.URI, fc.Graph.URI)
	setString(&cfg.Graph.Username, fc.Graph.Username)
	setString(&cfg.Graph.Password, fc.Graph.Password)
	setString(&cfg.Graph.Database, fc.Graph.Database)
	setString(&cfg.CachePath, fc.CachePath)
	setString(&cfg.LogLevel, fc.LogLevel)
	if fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}
	if fc.FlushThreshold > 0 {
		cfg.FlushThreshold = fc.FlushThreshold
	}
	if len(fc.Include) > 0 {
		cfg.Include = fc.Include
	}
	if len(fc.Ignore) > 0 {
		cfg.Ignore = fc.Ignore
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Graph.URI, os.Getenv("CODEGRAPH_GRAPH_URI"))
	setString(&cfg.Graph.Username, os.Getenv("CODEGRAPH_GRAPH_USERNAME"))
	setString(&cfg.Graph.Password, os.Getenv("CODEGRAPH_GRAPH_PASSWORD"))
	setString(&cfg.Graph.Database, os.Getenv("CODEGRAPH_GRAPH_DATABASE"))
	setString(&cfg.CachePath, os.Getenv("CODEGRAPH_CACHE"))
	setString(&cfg.LogLevel, os.Getenv("CODEGRAPH_LOG_LEVEL"))

	if err := setInt(&cfg.Workers, "CODEGRAPH_WORKERS"); err != nil {
		return err
	}
	if err := setInt(&cfg.FlushThreshold, "CODEGRAPH_FLUSH_THRESHOLD"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Graph.QueryTimeout, "CODEGRAPH_QUERY_TIMEOUT"); err != nil {
		return err
	}
	if v := os.Getenv("CODEGRAPH_GRAPH_ENCRYPTED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CODEGRAPH_GRAPH_ENCRYPTED: %w", err)
		}
		cfg.Graph.Encrypted = b
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
