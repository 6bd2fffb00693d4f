package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/parser"
)

type fakeStore struct {
	mu            sync.Mutex
	schemaCalls   int
	entityBatches [][]model.Entity
	relBatches    [][]model.Relationship
	entityErr     error
}

func (s *fakeStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemaCalls++
	return nil
}

func (s *fakeStore) CreateEntities(ctx context.Context, entities []model.Entity) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entityErr != nil {
		return nil, s.entityErr
	}
	s.entityBatches = append(s.entityBatches, append([]model.Entity(nil), entities...))
	ids := make(map[string]string, len(entities))
	for _, e := range entities {
		ids[e.ID()] = e.ID()
	}
	return ids, nil
}

func (s *fakeStore) CreateRelationships(ctx context.Context, rels []model.Relationship) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relBatches = append(s.relBatches, append([]model.Relationship(nil), rels...))
	return len(rels), nil
}

func (s *fakeStore) Counts(ctx context.Context) (graph.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := 0
	for _, batch := range s.entityBatches {
		nodes += len(batch)
	}
	edges := 0
	for _, batch := range s.relBatches {
		edges += len(batch)
	}
	return graph.Counts{Nodes: nodes, Edges: edges}, nil
}

func (s *fakeStore) totalEntities() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, batch := range s.entityBatches {
		n += len(batch)
	}
	return n
}

func TestPipelineIngestsRepository(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "svc.py"), "def handler():\n    return 1\n")
	writeFile(t, filepath.Join(root, "util.go"), "package util\n\nfunc Do() {}\n")
	writeFile(t, filepath.Join(root, "node_modules", "x.js"), "var x = 1\n")

	store := &fakeStore{}
	stats, err := New(store, root, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.schemaCalls != 1 {
		t.Errorf("schema calls = %d, want 1", store.schemaCalls)
	}
	if stats.FilesScanned != 2 || stats.FilesParsed != 2 || stats.FilesFailed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Entities == 0 || stats.Entities != store.totalEntities() {
		t.Errorf("entities loaded = %d, store saw %d", stats.Entities, store.totalEntities())
	}
	if stats.Nodes != store.totalEntities() {
		t.Errorf("stats.Nodes = %d, want store total %d", stats.Nodes, store.totalEntities())
	}
}

func TestPipelineFlushThresholdBatches(t *testing.T) {
	root := t.TempDir()
	// Each file yields at least two entities (File + Function), so with a
	// threshold of 1 every file forces its own flush.
	writeFile(t, filepath.Join(root, "a.py"), "def a(): pass\n")
	writeFile(t, filepath.Join(root, "b.py"), "def b(): pass\n")
	writeFile(t, filepath.Join(root, "c.py"), "def c(): pass\n")

	store := &fakeStore{}
	stats, err := New(store, root, Options{FlushThreshold: 1}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.entityBatches) != 3 {
		t.Errorf("entity batches = %d, want one per file", len(store.entityBatches))
	}
	if stats.Batches != 3 {
		t.Errorf("Batches = %d, want 3", stats.Batches)
	}

	// A large threshold accumulates everything into the final flush.
	store = &fakeStore{}
	if _, err := New(store, root, Options{FlushThreshold: 1000}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.entityBatches) != 1 {
		t.Errorf("entity batches = %d, want a single final flush", len(store.entityBatches))
	}
}

func TestPipelineChangedOnlyRestricts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "def a(): pass\n")
	writeFile(t, filepath.Join(root, "b.py"), "def b(): pass\n")

	store := &fakeStore{}
	stats, err := New(store, root, Options{ChangedOnly: []string{"a.py"}}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesParsed != 1 {
		t.Errorf("FilesParsed = %d, want 1", stats.FilesParsed)
	}
	if stats.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", stats.FilesSkipped)
	}
	for _, batch := range store.entityBatches {
		for _, e := range batch {
			if e.Label() == model.LabelFile && e.ID() != "a.py" {
				t.Errorf("unexpected file ingested: %s", e.ID())
			}
		}
	}
}

func TestPipelineEmptyChangedSetParsesNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "def a(): pass\n")
	writeFile(t, filepath.Join(root, "b.py"), "def b(): pass\n")

	store := &fakeStore{}
	stats, err := New(store, root, Options{ChangedOnly: []string{}}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesParsed != 0 {
		t.Errorf("FilesParsed = %d, want 0 for an empty changed set", stats.FilesParsed)
	}
	if stats.FilesSkipped != 2 {
		t.Errorf("FilesSkipped = %d, want 2", stats.FilesSkipped)
	}
	if len(store.entityBatches) != 0 || len(store.relBatches) != 0 {
		t.Errorf("store written despite empty changed set: %d entity batches, %d rel batches",
			len(store.entityBatches), len(store.relBatches))
	}
}

func TestPipelineIsolatesFileFailures(t *testing.T) {
	store := &fakeStore{}
	p := New(store, t.TempDir(), Options{})

	files := []FileInfo{
		{RelPath: "good.py", Language: lang.Python},
		{RelPath: "broken.py", Language: lang.Python},
	}
	goodEnts, goodRels, err := parser.ParseFile("good.py", []byte("def ok(): pass\n"), lang.Python)
	if err != nil {
		t.Fatal(err)
	}
	results := map[string]parser.FileResult{
		"good.py":   {Entities: goodEnts, Relationships: goodRels},
		"broken.py": {Err: errors.New("parse exploded")},
	}

	stats := &Stats{}
	if err := p.load(context.Background(), files, results, stats); err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.FilesParsed != 1 || stats.FilesFailed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.Failures) != 1 || stats.Failures[0].Path != "broken.py" {
		t.Errorf("failures = %v", stats.Failures)
	}
	if store.totalEntities() != len(goodEnts) {
		t.Errorf("store entities = %d, want %d from the good file", store.totalEntities(), len(goodEnts))
	}
}

func TestPipelineStoreFailureStillReportsStats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "def a(): pass\n")

	store := &fakeStore{entityErr: errors.New("server gone")}
	stats, err := New(store, root, Options{}).Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded despite store failure")
	}
	if stats == nil {
		t.Fatal("stats must be returned even on failure")
	}
	if stats.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", stats.FilesScanned)
	}
}
