package parser

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/codegraphhq/codegraph/internal/lang"
)

func TestParseBatchMatchesSequentialParsing(t *testing.T) {
	jobs := []FileJob{
		{Path: "a.py", Language: lang.Python, Source: []byte("def a():\n    return 1\n")},
		{Path: "b.py", Language: lang.Python, Source: []byte("class B:\n    def m(self):\n        pass\n")},
		{Path: "c.go", Language: lang.Go, Source: []byte("package c\n\nfunc C() {}\n")},
	}

	batch := ParseBatch(context.Background(), jobs, 4)

	for _, job := range jobs {
		entities, rels, err := ParseFile(job.Path, job.Source, job.Language)
		if err != nil {
			t.Fatalf("ParseFile(%s): %v", job.Path, err)
		}
		got, ok := batch[job.Path]
		if !ok {
			t.Fatalf("batch missing result for %s", job.Path)
		}
		if got.Err != nil {
			t.Fatalf("batch result for %s errored: %v", job.Path, got.Err)
		}
		if !reflect.DeepEqual(got.Entities, entities) {
			t.Errorf("%s: batch entities differ from sequential", job.Path)
		}
		if !reflect.DeepEqual(got.Relationships, rels) {
			t.Errorf("%s: batch relationships differ from sequential", job.Path)
		}
	}
}

func TestParseBatchIsolatesFailures(t *testing.T) {
	jobs := []FileJob{
		{Path: "good.py", Language: lang.Python, Source: []byte("def ok():\n    pass\n")},
		{Path: "bad.xyz", Language: lang.Unknown, Source: []byte("???")},
		{Path: "also_good.py", Language: lang.Python, Source: []byte("def fine():\n    pass\n")},
	}

	batch := ParseBatch(context.Background(), jobs, 2)

	if batch["bad.xyz"].Err == nil {
		t.Error("unsupported language must produce an errored result")
	}
	for _, path := range []string{"good.py", "also_good.py"} {
		r := batch[path]
		if r.Err != nil {
			t.Errorf("%s: sibling failure leaked: %v", path, r.Err)
		}
		if len(r.Entities) == 0 {
			t.Errorf("%s: no entities extracted", path)
		}
	}
}

func TestParseBatchHandlesManyFiles(t *testing.T) {
	var jobs []FileJob
	for i := 0; i < 64; i++ {
		src := fmt.Sprintf("def f%d():\n    return %d\n", i, i)
		jobs = append(jobs, FileJob{
			Path:     fmt.Sprintf("pkg/f%d.py", i),
			Language: lang.Python,
			Source:   []byte(src),
		})
	}

	batch := ParseBatch(context.Background(), jobs, 8)
	if len(batch) != len(jobs) {
		t.Fatalf("results = %d, want %d", len(batch), len(jobs))
	}
	for i := 0; i < 64; i++ {
		path := fmt.Sprintf("pkg/f%d.py", i)
		r := batch[path]
		if r.Err != nil {
			t.Fatalf("%s: %v", path, r.Err)
		}
		wantQN := fmt.Sprintf("%s::f%d:1", path, i)
		found := false
		for _, e := range r.Entities {
			if e.ID() == wantQN {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: missing %s", path, wantQN)
		}
	}
}

func TestParseBatchRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []FileJob{
		{Path: "a.py", Language: lang.Python, Source: []byte("def a():\n    pass\n")},
	}
	batch := ParseBatch(ctx, jobs, 1)
	// A cancelled context yields errored results, never a hang or panic.
	if r := batch["a.py"]; r.Err == nil && len(r.Entities) == 0 {
		t.Error("cancelled batch produced neither result nor error")
	}
}
