package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/codegraphhq/codegraph/internal/cache"
	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/ingest"
	"github.com/codegraphhq/codegraph/internal/model"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	full := flag.Bool("full", false, "ignore the incremental cache and re-ingest everything")
	flag.Parse()

	if *showVersion {
		fmt.Println("codegraph", version)
		os.Exit(0)
	}

	repoPath := "."
	if flag.NArg() > 0 {
		repoPath = flag.Arg(0)
	}

	if err := run(repoPath, *full); err != nil {
		slog.Error("codegraph.fatal", "err", err)
		os.Exit(1)
	}
}

func run(repoPath string, full bool) error {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := graph.Connect(ctx, cfg.Graph)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	scanOpts := ingest.ScanOptions{Include: cfg.Include, Ignore: cfg.Ignore}
	c := cache.Open(cfg.CachePath)

	opts := ingest.Options{
		Workers:        cfg.Workers,
		FlushThreshold: cfg.FlushThreshold,
		Scan:           scanOpts,
	}

	// Incremental: hash every discovered file against the cache and ingest
	// only what changed.
	var current []string
	if !full && c.Len() > 0 {
		files, err := ingest.Scan(ctx, repoPath, &scanOpts)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		current = make([]string, 0, len(files))
		for _, f := range files {
			current = append(current, f.RelPath)
		}
		changed := c.ChangedFiles(repoPath, current)
		slog.Info("incremental.classify", "changed", len(changed), "total", len(current))
		if len(changed) == 0 {
			slog.Info("incremental.noop")
		}
		opts.ChangedOnly = changed
	}

	stats, err := ingest.New(client, repoPath, opts).Run(ctx)
	if err != nil {
		return err
	}

	updateCache(ctx, c, client, repoPath, current, stats)

	fmt.Printf("files: %d parsed, %d failed\n", stats.FilesParsed, stats.FilesFailed)
	fmt.Printf("graph: %d nodes, %d edges (%s)\n", stats.Nodes, stats.Edges, stats.Elapsed.Round(time.Millisecond))
	for _, f := range stats.Failures {
		fmt.Fprintf(os.Stderr, "failed: %s: %s\n", f.Path, f.Err)
	}
	return nil
}

// updateCache records post-run file hashes and the graph fingerprint, and
// prunes entries for files that disappeared. Cache trouble is never fatal.
func updateCache(ctx context.Context, c *cache.Cache, client *graph.Client, repoPath string, current []string, stats *ingest.Stats) {
	if current == nil {
		files, err := ingest.Scan(ctx, repoPath, nil)
		if err != nil {
			slog.Warn("cache.scan.err", "err", err)
			return
		}
		for _, f := range files {
			current = append(current, f.RelPath)
		}
	}

	failed := make(map[string]bool, len(stats.Failures))
	for _, f := range stats.Failures {
		failed[f.Path] = true
	}
	for _, rel := range current {
		if failed[rel] {
			continue
		}
		hash, err := cache.HashFile(filepath.Join(repoPath, rel))
		if err != nil {
			continue
		}
		c.SetFile(rel, hash, nil)
	}
	c.Prune(current)

	if fp := graphFingerprint(ctx, client); fp != "" {
		c.SetGraph(fp, nil)
	}
	if err := c.Save(); err != nil {
		slog.Warn("cache.save.err", "err", err)
	}
}

// graphFingerprint summarizes the store by per-label and per-type counts in
// a fixed order.
func graphFingerprint(ctx context.Context, client *graph.Client) string {
	labels, err := client.LabelHistogram(ctx)
	if err != nil {
		return ""
	}
	types, err := client.TypeHistogram(ctx)
	if err != nil {
		return ""
	}

	var pairs []cache.StatPair
	for _, l := range model.AllLabels() {
		pairs = append(pairs, cache.StatPair{Name: string(l), Count: labels[string(l)]})
	}
	names := make([]string, 0, len(types))
	for _, t := range model.AllRelTypes() {
		names = append(names, string(t))
	}
	sort.Strings(names)
	for _, name := range names {
		pairs = append(pairs, cache.StatPair{Name: name, Count: types[name]})
	}
	for _, p := range pairs {
		slog.Debug("graph.histogram", "name", p.Name, "count", p.Count)
	}
	return cache.GraphFingerprint(pairs)
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
