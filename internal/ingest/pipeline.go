// Package ingest orchestrates repository ingestion: scan the tree, parse
// each source file into entities and relationships, and load them into the
// graph store in batches.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/parser"
)

// defaultFlushThreshold is the entity count that triggers a batch flush.
const defaultFlushThreshold = 100

// Store is the graph-side surface the pipeline writes through.
type Store interface {
	EnsureSchema(ctx context.Context) error
	CreateEntities(ctx context.Context, entities []model.Entity) (map[string]string, error)
	CreateRelationships(ctx context.Context, rels []model.Relationship) (int, error)
	Counts(ctx context.Context) (graph.Counts, error)
}

// Options configures a pipeline run.
type Options struct {
	// Workers bounds parallel parsing. Zero means GOMAXPROCS.
	Workers int
	// FlushThreshold is the pending-entity count that triggers a store
	// flush. Zero means the default.
	FlushThreshold int
	// ChangedOnly restricts ingestion to these repo-relative paths when
	// non-nil. An empty non-nil set ingests nothing. Used for incremental
	// runs driven by the cache.
	ChangedOnly []string
	Scan        ScanOptions
}

// FileFailure records one file the pipeline could not ingest.
type FileFailure struct {
	Path string
	Err  string
}

// Stats summarizes a pipeline run. Nodes and Edges are store totals queried
// after the final flush, so they reflect the whole graph, not just this run.
type Stats struct {
	FilesScanned  int
	FilesParsed   int
	FilesFailed   int
	FilesSkipped  int
	Entities      int
	Relationships int
	Batches       int
	Nodes         int
	Edges         int
	Failures      []FileFailure
	Elapsed       time.Duration
}

// Pipeline ingests one repository into a graph store.
type Pipeline struct {
	store  Store
	root   string
	opts   Options
	tracer trace.Tracer
}

// New creates a Pipeline over the given repository root.
func New(store Store, root string, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.FlushThreshold <= 0 {
		opts.FlushThreshold = defaultFlushThreshold
	}
	return &Pipeline{
		store:  store,
		root:   root,
		opts:   opts,
		tracer: otel.Tracer("codegraph/ingest"),
	}
}

// Run executes the full pipeline: ensure schema, scan, parse in parallel,
// load in batches, and report stats. A file that fails to read or parse is
// recorded in the stats and skipped; it never aborts the run. Store write
// failures do abort, but the returned Stats still carry whatever totals
// could be read back.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	ctx, span := p.tracer.Start(ctx, "ingest.run")
	defer span.End()

	started := time.Now()
	stats := &Stats{}
	slog.Info("pipeline.start", "path", p.root)

	if err := p.store.EnsureSchema(ctx); err != nil {
		return stats, fmt.Errorf("ensure schema: %w", err)
	}

	t := time.Now()
	files, skipped, err := p.scan(ctx)
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	stats.FilesScanned = len(files) + skipped
	stats.FilesSkipped = skipped
	slog.Info("pipeline.discovered", "files", len(files), "skipped", skipped)
	slog.Info("pass.timing", "pass", "scan", "elapsed", time.Since(t))

	t = time.Now()
	results := p.parse(ctx, files)
	slog.Info("pass.timing", "pass", "parse", "elapsed", time.Since(t))

	t = time.Now()
	loadErr := p.load(ctx, files, results, stats)
	slog.Info("pass.timing", "pass", "load", "elapsed", time.Since(t))

	// Read store totals even after a partial failure so callers see the
	// state the graph was actually left in.
	if counts, cErr := p.store.Counts(ctx); cErr == nil {
		stats.Nodes = counts.Nodes
		stats.Edges = counts.Edges
	}
	stats.Elapsed = time.Since(started)

	if loadErr != nil {
		return stats, loadErr
	}
	slog.Info("pipeline.done",
		"files", stats.FilesParsed, "failed", stats.FilesFailed,
		"nodes", stats.Nodes, "edges", stats.Edges, "elapsed", stats.Elapsed)
	return stats, nil
}

// scan discovers source files, narrowing to the explicit changed set when
// one was supplied. The second result counts files dropped by that filter.
func (p *Pipeline) scan(ctx context.Context) ([]FileInfo, int, error) {
	ctx, span := p.tracer.Start(ctx, "ingest.scan")
	defer span.End()

	files, err := Scan(ctx, p.root, &p.opts.Scan)
	if err != nil {
		return nil, 0, err
	}
	if p.opts.ChangedOnly == nil {
		span.SetAttributes(attribute.Int("files", len(files)))
		return files, 0, nil
	}

	changed := make(map[string]bool, len(p.opts.ChangedOnly))
	for _, rel := range p.opts.ChangedOnly {
		changed[rel] = true
	}
	total := len(files)
	kept := files[:0]
	for _, f := range files {
		if changed[f.RelPath] {
			kept = append(kept, f)
		}
	}
	span.SetAttributes(attribute.Int("files", len(kept)))
	return kept, total - len(kept), nil
}

// parse reads and parses every file in parallel, keyed by relative path.
func (p *Pipeline) parse(ctx context.Context, files []FileInfo) map[string]parser.FileResult {
	ctx, span := p.tracer.Start(ctx, "ingest.parse")
	defer span.End()

	jobs := make([]parser.FileJob, 0, len(files))
	unreadable := make(map[string]error)
	for _, f := range files {
		source, err := os.ReadFile(f.Path)
		if err != nil {
			unreadable[f.RelPath] = err
			continue
		}
		jobs = append(jobs, parser.FileJob{Path: f.RelPath, Source: source, Language: f.Language})
	}

	results := parser.ParseBatch(ctx, jobs, p.opts.Workers)
	for rel, err := range unreadable {
		results[rel] = parser.FileResult{Err: fmt.Errorf("read: %w", err)}
	}
	return results
}

// load walks parse results in scan order, accumulating entities and
// relationships and flushing to the store whenever the pending entity count
// reaches the threshold. Relationships always flush after the entities of
// the same accumulation window, so their endpoints exist or are
// placeholder-merged by the store.
func (p *Pipeline) load(ctx context.Context, files []FileInfo, results map[string]parser.FileResult, stats *Stats) error {
	ctx, span := p.tracer.Start(ctx, "ingest.load")
	defer span.End()

	var pendingEnts []model.Entity
	var pendingRels []model.Relationship

	flush := func() error {
		if len(pendingEnts) == 0 && len(pendingRels) == 0 {
			return nil
		}
		if _, err := p.store.CreateEntities(ctx, pendingEnts); err != nil {
			return fmt.Errorf("load entities: %w", err)
		}
		if _, err := p.store.CreateRelationships(ctx, pendingRels); err != nil {
			return fmt.Errorf("load relationships: %w", err)
		}
		stats.Entities += len(pendingEnts)
		stats.Relationships += len(pendingRels)
		stats.Batches++
		pendingEnts = pendingEnts[:0]
		pendingRels = pendingRels[:0]
		return nil
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, ok := results[f.RelPath]
		if !ok {
			continue
		}
		if r.Err != nil {
			stats.FilesFailed++
			stats.Failures = append(stats.Failures, FileFailure{Path: f.RelPath, Err: r.Err.Error()})
			slog.Warn("ingest.file.err", "path", f.RelPath, "err", r.Err)
			continue
		}
		stats.FilesParsed++
		pendingEnts = append(pendingEnts, r.Entities...)
		pendingRels = append(pendingRels, r.Relationships...)

		if len(pendingEnts) >= p.opts.FlushThreshold {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
