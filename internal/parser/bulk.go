package parser

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/model"
)

// FileJob is one unit of bulk parsing work.
type FileJob struct {
	Path     string // repo-relative path, used for qualified names
	Source   []byte
	Language lang.Language
}

// FileResult is the outcome of parsing one file. A failed file carries only
// its error; sibling files in the same batch are unaffected.
type FileResult struct {
	Entities      []model.Entity
	Relationships []model.Relationship
	Err           error
}

// ParseFile runs the sequential parser contract for one file: parse,
// extract entities, extract relationships.
func ParseFile(path string, source []byte, language lang.Language) ([]model.Entity, []model.Relationship, error) {
	source = StripBOM(source)
	tree, err := Parse(language, path, source)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	entities := ExtractEntities(tree, source, path, language)
	rels := ExtractRelationships(tree, source, path, language, entities)
	return entities, rels, nil
}

// ParseBatch parses files concurrently and returns a map of path to result.
// Results are identical to calling ParseFile per file: extraction shares no
// mutable state across files, each worker writes only its own slot, and a
// panicking or failing file is isolated into its own errored result. A slow
// file occupies one worker; siblings proceed on the rest of the pool.
func ParseBatch(ctx context.Context, jobs []FileJob, workers int) map[string]FileResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]FileResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = FileResult{Err: err}
				return nil
			}
			results[i] = parseOne(job)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]FileResult, len(jobs))
	for i, job := range jobs {
		out[job.Path] = results[i]
	}
	return out
}

// parseOne wraps ParseFile with panic isolation so a grammar crash on one
// file cannot abort the batch.
func parseOne(job FileJob) (result FileResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = FileResult{Err: &Error{
				Path:     job.Path,
				Language: job.Language,
				Msg:      fmt.Sprintf("panic: %v", rec),
			}}
		}
	}()

	entities, rels, err := ParseFile(job.Path, job.Source, job.Language)
	if err != nil {
		return FileResult{Err: err}
	}
	return FileResult{Entities: entities, Relationships: rels}
}
