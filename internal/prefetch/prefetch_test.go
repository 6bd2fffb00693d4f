package prefetch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/codegraphhq/codegraph/internal/graph"
)

// fakeQuerier answers each fixed prefetch query from a canned row set keyed
// by a substring of the Cypher text.
type fakeQuerier struct {
	rows  map[string][]map[string]any
	fail  map[string]error
	calls int
}

func (q *fakeQuerier) Read(ctx context.Context, cypher string, params map[string]any, opts ...graph.QueryOption) ([]map[string]any, error) {
	q.calls++
	for key, err := range q.fail {
		if strings.Contains(cypher, key) {
			return nil, err
		}
	}
	for key, rows := range q.rows {
		if strings.Contains(cypher, key) {
			return rows, nil
		}
	}
	return nil, nil
}

func fn(qn, name string, complexity int, params ...string) map[string]any {
	p := make([]any, len(params))
	for i, s := range params {
		p[i] = s
	}
	return map[string]any{
		"qn": qn, "name": name, "file": "a.py",
		"line_start": int64(1), "line_end": int64(5),
		"parameters": p, "complexity": int64(complexity), "is_method": false,
	}
}

func edge(source, target string) map[string]any {
	return map[string]any{"source": source, "target": target}
}

func seededQuerier() *fakeQuerier {
	return &fakeQuerier{rows: map[string][]map[string]any{
		"(f:Function)": {
			fn("a.py::main:1", "main", 2, "argv"),
			fn("a.py::hot:10", "hot", 15, "a", "b", "c", "d", "e", "f"),
			fn("a.py::C:20.m1:21", "m1", 1),
			fn("a.py::C:20.m2:24", "m2", 1),
		},
		"(c:Class)": {
			{"qn": "a.py::C:20", "name": "C", "file": "a.py"},
		},
		"(f:File)": {
			{"qn": "a.py", "language": "python"},
		},
		":CALLS]": {
			edge("a.py::main:1", "a.py::hot:10"),
			edge("a.py::hot:10", "a.py::C:20.m1:21"),
			edge("a.py::C:20.m2:24", "a.py::hot:10"),
		},
		":IMPORTS]": {
			edge("a.py", "os"),
		},
		":INHERITS]": {
			edge("a.py::C:20", "b.py::Base:1"),
		},
		":CONTAINS]": {
			edge("a.py", "a.py::main:1"),
			edge("a.py", "a.py::hot:10"),
			edge("a.py", "a.py::C:20"),
			edge("a.py::C:20", "a.py::C:20.m1:21"),
			edge("a.py::C:20", "a.py::C:20.m2:24"),
		},
	}}
}

func loadedWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	w := New(seededQuerier())
	if err := w.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return w
}

func TestLoadIsIdempotent(t *testing.T) {
	q := seededQuerier()
	w := New(q)
	if err := w.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := q.calls
	if err := w.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if q.calls != first {
		t.Errorf("second Load re-queried the store: %d -> %d calls", first, q.calls)
	}

	w.Reset()
	if err := w.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if q.calls <= first {
		t.Error("Reset+Load did not refresh from the store")
	}
}

func TestPartialQueryFailureDegradesNotAborts(t *testing.T) {
	q := seededQuerier()
	q.fail = map[string]error{":INHERITS]": errors.New("timeout")}

	w := New(q)
	err := w.Load(context.Background())
	if err == nil {
		t.Error("Load must report the failed query")
	}
	// Everything else still loaded.
	if _, ok := w.FunctionByQN("a.py::main:1"); !ok {
		t.Error("functions lost to an unrelated query failure")
	}
	if got := w.Callees("a.py::main:1"); len(got) != 1 {
		t.Errorf("call graph lost: %v", got)
	}
	if got := w.ParentsOf("a.py::C:20"); len(got) != 0 {
		t.Errorf("failed query left data: %v", got)
	}
}

func TestCallGraphLookups(t *testing.T) {
	w := loadedWarehouse(t)

	if got := w.Callees("a.py::main:1"); len(got) != 1 || got[0] != "a.py::hot:10" {
		t.Errorf("Callees = %v", got)
	}
	callers := w.Callers("a.py::hot:10")
	if len(callers) != 2 {
		t.Errorf("Callers = %v", callers)
	}
}

func TestClassLookups(t *testing.T) {
	w := loadedWarehouse(t)

	methods := w.MethodsOfClass("a.py::C:20")
	if len(methods) != 2 {
		t.Fatalf("MethodsOfClass = %v", methods)
	}
	cl, ok := w.ClassOfMethod("a.py::C:20.m1:21")
	if !ok || cl.Name != "C" {
		t.Errorf("ClassOfMethod = %v, %v", cl, ok)
	}
	if parent, ok := w.Parent("a.py::C:20.m1:21"); !ok || parent != "a.py::C:20" {
		t.Errorf("Parent = %q, %v", parent, ok)
	}
}

func TestImportAndInheritanceLookups(t *testing.T) {
	w := loadedWarehouse(t)

	if got := w.ImportsOf("a.py"); len(got) != 1 || got[0] != "os" {
		t.Errorf("ImportsOf = %v", got)
	}
	if got := w.ImportedBy("os"); len(got) != 1 || got[0] != "a.py" {
		t.Errorf("ImportedBy = %v", got)
	}
	if got := w.ParentsOf("a.py::C:20"); len(got) != 1 || got[0] != "b.py::Base:1" {
		t.Errorf("ParentsOf = %v", got)
	}
	if got := w.ChildrenOf("b.py::Base:1"); len(got) != 1 || got[0] != "a.py::C:20" {
		t.Errorf("ChildrenOf = %v", got)
	}
}

func TestDetectorShapedLookups(t *testing.T) {
	w := loadedWarehouse(t)

	hot := w.HighComplexityFunctions(10)
	if len(hot) != 1 || hot[0].Name != "hot" {
		t.Errorf("HighComplexityFunctions = %v", hot)
	}

	long := w.LongParameterFunctions(5)
	if len(long) != 1 || long[0].Name != "hot" {
		t.Errorf("LongParameterFunctions = %v", long)
	}

	gods := w.GodClassCandidates(2)
	if len(gods) != 1 || gods[0].Name != "C" {
		t.Errorf("GodClassCandidates = %v", gods)
	}

	hubs := w.HubFunctions(3)
	if len(hubs) != 1 || hubs[0].Name != "hot" {
		t.Errorf("HubFunctions = %v", hubs)
	}
}

func TestNameLookups(t *testing.T) {
	w := loadedWarehouse(t)

	if fns := w.FunctionsByName("main"); len(fns) != 1 || fns[0].QualifiedName != "a.py::main:1" {
		t.Errorf("FunctionsByName = %v", fns)
	}
	if cls := w.ClassesByName("C"); len(cls) != 1 {
		t.Errorf("ClassesByName = %v", cls)
	}
	if f, ok := w.FileByPath("a.py"); !ok || f.Language != "python" {
		t.Errorf("FileByPath = %v, %v", f, ok)
	}
}
