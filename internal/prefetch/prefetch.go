// Package prefetch bulk-loads the graph into in-memory indexes so detectors
// and query helpers can do repeated lookups without round-tripping to the
// store. One Load issues a small fixed set of queries; everything after is
// map access.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/codegraphhq/codegraph/internal/graph"
)

// Querier is the read-only store surface the warehouse loads through.
type Querier interface {
	Read(ctx context.Context, cypher string, params map[string]any, opts ...graph.QueryOption) ([]map[string]any, error)
}

// Function is a prefetched function or method node.
type Function struct {
	QualifiedName string
	Name          string
	FilePath      string
	LineStart     int
	LineEnd       int
	Parameters    []string
	Complexity    int
	IsMethod      bool
}

// Class is a prefetched class node.
type Class struct {
	QualifiedName string
	Name          string
	FilePath      string
}

// File is a prefetched file node.
type File struct {
	Path     string
	Language string
}

// Warehouse holds the prefetched graph. Safe for concurrent readers once
// Load has returned; Load itself is serialized and idempotent.
type Warehouse struct {
	q Querier

	mu     sync.RWMutex
	loaded bool

	functionsByQN   map[string]*Function
	functionsByName map[string][]*Function
	classesByQN     map[string]*Class
	classesByName   map[string][]*Class
	files           map[string]*File

	callsOut   map[string][]string
	callsIn    map[string][]string
	importsOut map[string][]string
	importsIn  map[string][]string
	parentsOf  map[string][]string
	childrenOf map[string][]string
	contains   map[string][]string
	parentQN   map[string]string
}

// New creates an empty warehouse over a store.
func New(q Querier) *Warehouse {
	return &Warehouse{q: q}
}

// Load populates the warehouse. Calling it again is a no-op until Reset; a
// query that fails is logged and skipped so one bad query degrades the
// warehouse instead of emptying it. The joined error reports what failed.
func (w *Warehouse) Load(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loaded {
		return nil
	}
	w.reset()

	var errs []error
	step := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			slog.Warn("prefetch.query.err", "query", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("functions", w.loadFunctions)
	step("classes", w.loadClasses)
	step("files", w.loadFiles)
	step("calls", func(ctx context.Context) error {
		return w.loadEdges(ctx, "CALLS", w.callsOut, w.callsIn)
	})
	step("imports", func(ctx context.Context) error {
		return w.loadEdges(ctx, "IMPORTS", w.importsOut, w.importsIn)
	})
	step("inherits", func(ctx context.Context) error {
		return w.loadEdges(ctx, "INHERITS", w.parentsOf, w.childrenOf)
	})
	step("contains", w.loadContains)

	w.loaded = true
	return errors.Join(errs...)
}

// Reset drops all prefetched data so the next Load refreshes from the store.
func (w *Warehouse) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loaded = false
	w.reset()
}

func (w *Warehouse) reset() {
	w.functionsByQN = map[string]*Function{}
	w.functionsByName = map[string][]*Function{}
	w.classesByQN = map[string]*Class{}
	w.classesByName = map[string][]*Class{}
	w.files = map[string]*File{}
	w.callsOut = map[string][]string{}
	w.callsIn = map[string][]string{}
	w.importsOut = map[string][]string{}
	w.importsIn = map[string][]string{}
	w.parentsOf = map[string][]string{}
	w.childrenOf = map[string][]string{}
	w.contains = map[string][]string{}
	w.parentQN = map[string]string{}
}

func (w *Warehouse) loadFunctions(ctx context.Context) error {
	rows, err := w.q.Read(ctx, `
		MATCH (f:Function)
		RETURN f.qualified_name AS qn, f.name AS name, f.file_path AS file,
		       f.line_start AS line_start, f.line_end AS line_end,
		       f.parameters AS parameters, f.complexity AS complexity,
		       f.is_method AS is_method`, nil)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fn := &Function{
			QualifiedName: asString(row["qn"]),
			Name:          asString(row["name"]),
			FilePath:      asString(row["file"]),
			LineStart:     asInt(row["line_start"]),
			LineEnd:       asInt(row["line_end"]),
			Parameters:    asStrings(row["parameters"]),
			Complexity:    asInt(row["complexity"]),
			IsMethod:      asBool(row["is_method"]),
		}
		if fn.QualifiedName == "" {
			continue
		}
		w.functionsByQN[fn.QualifiedName] = fn
		w.functionsByName[fn.Name] = append(w.functionsByName[fn.Name], fn)
	}
	return nil
}

func (w *Warehouse) loadClasses(ctx context.Context) error {
	rows, err := w.q.Read(ctx, `
		MATCH (c:Class)
		RETURN c.qualified_name AS qn, c.name AS name, c.file_path AS file`, nil)
	if err != nil {
		return err
	}
	for _, row := range rows {
		cl := &Class{
			QualifiedName: asString(row["qn"]),
			Name:          asString(row["name"]),
			FilePath:      asString(row["file"]),
		}
		if cl.QualifiedName == "" {
			continue
		}
		w.classesByQN[cl.QualifiedName] = cl
		w.classesByName[cl.Name] = append(w.classesByName[cl.Name], cl)
	}
	return nil
}

func (w *Warehouse) loadFiles(ctx context.Context) error {
	rows, err := w.q.Read(ctx, `
		MATCH (f:File)
		RETURN f.qualified_name AS qn, f.language AS language`, nil)
	if err != nil {
		return err
	}
	for _, row := range rows {
		f := &File{Path: asString(row["qn"]), Language: asString(row["language"])}
		if f.Path == "" {
			continue
		}
		w.files[f.Path] = f
	}
	return nil
}

func (w *Warehouse) loadEdges(ctx context.Context, relType string, out, in map[string][]string) error {
	rows, err := w.q.Read(ctx, fmt.Sprintf(`
		MATCH (a)-[:%s]->(b)
		RETURN a.qualified_name AS source, b.qualified_name AS target`, relType), nil)
	if err != nil {
		return err
	}
	for _, row := range rows {
		source, target := asString(row["source"]), asString(row["target"])
		if source == "" || target == "" {
			continue
		}
		out[source] = append(out[source], target)
		in[target] = append(in[target], source)
	}
	return nil
}

func (w *Warehouse) loadContains(ctx context.Context) error {
	rows, err := w.q.Read(ctx, `
		MATCH (a)-[:CONTAINS]->(b)
		RETURN a.qualified_name AS source, b.qualified_name AS target`, nil)
	if err != nil {
		return err
	}
	for _, row := range rows {
		source, target := asString(row["source"]), asString(row["target"])
		if source == "" || target == "" {
			continue
		}
		w.contains[source] = append(w.contains[source], target)
		w.parentQN[target] = source
	}
	return nil
}

// FunctionByQN returns the function with the given qualified name.
func (w *Warehouse) FunctionByQN(qn string) (*Function, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn, ok := w.functionsByQN[qn]
	return fn, ok
}

// FunctionsByName returns all functions sharing a simple name.
func (w *Warehouse) FunctionsByName(name string) []*Function {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]*Function(nil), w.functionsByName[name]...)
}

// ClassByQN returns the class with the given qualified name.
func (w *Warehouse) ClassByQN(qn string) (*Class, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cl, ok := w.classesByQN[qn]
	return cl, ok
}

// ClassesByName returns all classes sharing a simple name.
func (w *Warehouse) ClassesByName(name string) []*Class {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]*Class(nil), w.classesByName[name]...)
}

// FileByPath returns the file node for a repo-relative path.
func (w *Warehouse) FileByPath(path string) (*File, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	f, ok := w.files[path]
	return f, ok
}

// Callees returns qualified names this entity calls.
func (w *Warehouse) Callees(qn string) []string { return w.adjacency(w.callsOut, qn) }

// Callers returns qualified names that call this entity.
func (w *Warehouse) Callers(qn string) []string { return w.adjacency(w.callsIn, qn) }

// ImportsOf returns import targets of a file's modules.
func (w *Warehouse) ImportsOf(qn string) []string { return w.adjacency(w.importsOut, qn) }

// ImportedBy returns importers of a module.
func (w *Warehouse) ImportedBy(qn string) []string { return w.adjacency(w.importsIn, qn) }

// ParentsOf returns the base classes of a class.
func (w *Warehouse) ParentsOf(qn string) []string { return w.adjacency(w.parentsOf, qn) }

// ChildrenOf returns the subclasses of a class.
func (w *Warehouse) ChildrenOf(qn string) []string { return w.adjacency(w.childrenOf, qn) }

// Children returns the direct containment children of an entity.
func (w *Warehouse) Children(qn string) []string { return w.adjacency(w.contains, qn) }

func (w *Warehouse) adjacency(m map[string][]string, qn string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), m[qn]...)
}

// Parent returns the containment parent of an entity.
func (w *Warehouse) Parent(qn string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	parent, ok := w.parentQN[qn]
	return parent, ok
}

// MethodsOfClass returns the functions contained directly in a class.
func (w *Warehouse) MethodsOfClass(classQN string) []*Function {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var methods []*Function
	for _, child := range w.contains[classQN] {
		if fn, ok := w.functionsByQN[child]; ok {
			methods = append(methods, fn)
		}
	}
	return methods
}

// ClassOfMethod returns the class containing a method, if any.
func (w *Warehouse) ClassOfMethod(methodQN string) (*Class, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	parent, ok := w.parentQN[methodQN]
	if !ok {
		return nil, false
	}
	cl, ok := w.classesByQN[parent]
	return cl, ok
}

// HighComplexityFunctions returns functions at or above a branching-count
// threshold, most complex first.
func (w *Warehouse) HighComplexityFunctions(min int) []*Function {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*Function
	for _, fn := range w.functionsByQN {
		if fn.Complexity >= min {
			out = append(out, fn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Complexity != out[j].Complexity {
			return out[i].Complexity > out[j].Complexity
		}
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}

// GodClassCandidates returns classes with at least minMethods contained
// functions, largest first.
func (w *Warehouse) GodClassCandidates(minMethods int) []*Class {
	w.mu.RLock()
	defer w.mu.RUnlock()
	type sized struct {
		class *Class
		n     int
	}
	var candidates []sized
	for qn, cl := range w.classesByQN {
		n := 0
		for _, child := range w.contains[qn] {
			if _, ok := w.functionsByQN[child]; ok {
				n++
			}
		}
		if n >= minMethods {
			candidates = append(candidates, sized{cl, n})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].n != candidates[j].n {
			return candidates[i].n > candidates[j].n
		}
		return candidates[i].class.QualifiedName < candidates[j].class.QualifiedName
	})
	out := make([]*Class, len(candidates))
	for i, c := range candidates {
		out[i] = c.class
	}
	return out
}

// LongParameterFunctions returns functions with at least min parameters.
func (w *Warehouse) LongParameterFunctions(min int) []*Function {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*Function
	for _, fn := range w.functionsByQN {
		if len(fn.Parameters) >= min {
			out = append(out, fn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Parameters) != len(out[j].Parameters) {
			return len(out[i].Parameters) > len(out[j].Parameters)
		}
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}

// HubFunctions returns functions whose call degree (in plus out) is at least
// min, busiest first.
func (w *Warehouse) HubFunctions(min int) []*Function {
	w.mu.RLock()
	defer w.mu.RUnlock()
	type ranked struct {
		fn     *Function
		degree int
	}
	var hubs []ranked
	for qn, fn := range w.functionsByQN {
		degree := len(w.callsOut[qn]) + len(w.callsIn[qn])
		if degree >= min {
			hubs = append(hubs, ranked{fn, degree})
		}
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].degree != hubs[j].degree {
			return hubs[i].degree > hubs[j].degree
		}
		return hubs[i].fn.QualifiedName < hubs[j].fn.QualifiedName
	})
	out := make([]*Function, len(hubs))
	for i, h := range hubs {
		out[i] = h.fn
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
