package parser

import (
	"strings"
	"testing"

	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/model"
)

func parseSource(t *testing.T, path string, language lang.Language, source string) ([]model.Entity, []model.Relationship) {
	t.Helper()
	entities, rels, err := ParseFile(path, []byte(source), language)
	if err != nil {
		t.Fatalf("ParseFile(%s): %v", path, err)
	}
	return entities, rels
}

func entityByQN(t *testing.T, entities []model.Entity, qn string) model.Entity {
	t.Helper()
	for _, e := range entities {
		if e.ID() == qn {
			return e
		}
	}
	var ids []string
	for _, e := range entities {
		ids = append(ids, e.ID())
	}
	t.Fatalf("no entity %q, have:\n  %s", qn, strings.Join(ids, "\n  "))
	return nil
}

func hasRel(rels []model.Relationship, source, target string, relType model.RelType) bool {
	for _, r := range rels {
		if r.SourceID == source && r.TargetID == target && r.Type == relType {
			return true
		}
	}
	return false
}

func relsOfType(rels []model.Relationship, relType model.RelType) []model.Relationship {
	var out []model.Relationship
	for _, r := range rels {
		if r.Type == relType {
			out = append(out, r)
		}
	}
	return out
}

const pythonNested = `import os

class Outer:
    class Inner:
        def run(self):
            return helper(self.value)

def helper(value):
    print(value)
    return value

def dispatch():
    fn = helper
    return fn(1)
`

func TestPythonHierarchicalContainment(t *testing.T) {
	entities, rels := parseSource(t, "app/svc.py", lang.Python, pythonNested)

	file := entityByQN(t, entities, "app/svc.py")
	if file.Label() != model.LabelFile {
		t.Errorf("file label = %s", file.Label())
	}

	outer := entityByQN(t, entities, "app/svc.py::Outer:3").(model.Class)
	inner := entityByQN(t, entities, "app/svc.py::Outer:3.Inner:4").(model.Class)
	run := entityByQN(t, entities, "app/svc.py::Outer:3.Inner:4.run:5").(model.Function)
	helper := entityByQN(t, entities, "app/svc.py::helper:8").(model.Function)

	if outer.NestingLevel != 0 || inner.NestingLevel != 1 {
		t.Errorf("nesting levels = %d, %d, want 0, 1", outer.NestingLevel, inner.NestingLevel)
	}
	if !run.IsMethod {
		t.Error("run must be a method")
	}
	if helper.IsMethod {
		t.Error("helper is top level, not a method")
	}
	if got := helper.Parameters; len(got) != 1 || got[0] != "value" {
		t.Errorf("helper parameters = %v", got)
	}

	// A method's containment parent is its class, never the file.
	contains := map[string]string{
		"app/svc.py::Outer:3":                "app/svc.py",
		"app/svc.py::Outer:3.Inner:4":        "app/svc.py::Outer:3",
		"app/svc.py::Outer:3.Inner:4.run:5":  "app/svc.py::Outer:3.Inner:4",
		"app/svc.py::helper:8":               "app/svc.py",
		"app/svc.py::dispatch:12":            "app/svc.py",
	}
	for child, parent := range contains {
		if !hasRel(rels, parent, child, model.RelContains) {
			t.Errorf("missing CONTAINS %s -> %s", parent, child)
		}
	}
	if got := len(relsOfType(rels, model.RelContains)); got != len(contains) {
		t.Errorf("CONTAINS count = %d, want %d", got, len(contains))
	}
}

func TestPythonImportsAndModules(t *testing.T) {
	entities, rels := parseSource(t, "app/svc.py", lang.Python, pythonNested)

	mod := entityByQN(t, entities, "os").(model.Module)
	if mod.IsDynamicImport {
		t.Error("static import flagged dynamic")
	}
	if !hasRel(rels, "app/svc.py", "os", model.RelImports) {
		t.Error("missing IMPORTS file -> os")
	}
	// Modules never join the containment hierarchy.
	for _, r := range relsOfType(rels, model.RelContains) {
		if r.TargetID == "os" {
			t.Error("module has a CONTAINS parent")
		}
	}
}

func TestPythonCallsResolveToEnclosingScope(t *testing.T) {
	_, rels := parseSource(t, "app/svc.py", lang.Python, pythonNested)

	// Call inside a method resolves both endpoints within the file.
	if !hasRel(rels, "app/svc.py::Outer:3.Inner:4.run:5", "app/svc.py::helper:8", model.RelCalls) {
		t.Errorf("missing CALLS run -> helper, have %v", relsOfType(rels, model.RelCalls))
	}
	// Unresolvable callees keep the raw symbol.
	if !hasRel(rels, "app/svc.py::helper:8", "print", model.RelCalls) {
		t.Error("missing CALLS helper -> print (raw symbol)")
	}
}

func TestPythonUsesDistinctFromCalls(t *testing.T) {
	_, rels := parseSource(t, "app/svc.py", lang.Python, pythonNested)

	// `fn = helper` references helper without invoking it.
	if !hasRel(rels, "app/svc.py::dispatch:12", "app/svc.py::helper:8", model.RelUses) {
		t.Errorf("missing USES dispatch -> helper, have %v", relsOfType(rels, model.RelUses))
	}
	// The callee position of a call is not a value use.
	if hasRel(rels, "app/svc.py::Outer:3.Inner:4.run:5", "app/svc.py::helper:8", model.RelUses) {
		t.Error("callee identifier counted as USES")
	}
}

func TestPythonDecoratorsAsyncAndYield(t *testing.T) {
	source := `class Service:
    @property
    def name(self):
        return self._name

    @staticmethod
    def build():
        return Service()

async def fetch():
    yield 1
`
	entities, _ := parseSource(t, "svc.py", lang.Python, source)

	name := entityByQN(t, entities, "svc.py::Service:1.name:3").(model.Function)
	if !name.IsProperty || !name.IsMethod || !name.HasReturn {
		t.Errorf("name flags = %+v", name)
	}
	if len(name.Decorators) != 1 || name.Decorators[0] != "property" {
		t.Errorf("name decorators = %v", name.Decorators)
	}

	build := entityByQN(t, entities, "svc.py::Service:1.build:7").(model.Function)
	if !build.IsStatic {
		t.Error("build must be static")
	}

	fetch := entityByQN(t, entities, "svc.py::fetch:10").(model.Function)
	if !fetch.IsAsync {
		t.Error("fetch must be async")
	}
	if !fetch.HasYield || fetch.HasReturn {
		t.Errorf("fetch generator flags: yield=%v return=%v", fetch.HasYield, fetch.HasReturn)
	}
}

func TestPythonInheritsAndOverrides(t *testing.T) {
	source := `class Base:
    def greet(self):
        return "base"

class Child(Base):
    def greet(self):
        return "child"
`
	entities, rels := parseSource(t, "m.py", lang.Python, source)

	child := entityByQN(t, entities, "m.py::Child:5").(model.Class)
	if child.IsException {
		t.Error("Child misclassified as exception")
	}

	if !hasRel(rels, "m.py::Child:5", "m.py::Base:1", model.RelInherits) {
		t.Errorf("missing INHERITS, have %v", relsOfType(rels, model.RelInherits))
	}
	if !hasRel(rels, "m.py::Child:5.greet:6", "m.py::Base:1.greet:2", model.RelOverride) {
		t.Errorf("missing OVERRIDES, have %v", relsOfType(rels, model.RelOverride))
	}
}

func TestPythonExceptionAndDataclassDetection(t *testing.T) {
	source := `from dataclasses import dataclass

class ParseError(Exception):
    pass

@dataclass
class Point:
    x: int
`
	entities, _ := parseSource(t, "m.py", lang.Python, source)

	exc := entityByQN(t, entities, "m.py::ParseError:3").(model.Class)
	if !exc.IsException {
		t.Error("ParseError must be flagged as exception")
	}
	point := entityByQN(t, entities, "m.py::Point:7").(model.Class)
	if !point.IsDataclass {
		t.Error("Point must be flagged as dataclass")
	}
}

func TestGoMethodsAttachToReceiverType(t *testing.T) {
	source := `package main

type Server struct {
	Name string
}

func (s *Server) Run() error {
	return nil
}

func main() {
}
`
	entities, rels := parseSource(t, "main.go", lang.Go, source)

	srv := entityByQN(t, entities, "main.go::Server:3").(model.Class)
	if srv.Name != "Server" {
		t.Errorf("class name = %q", srv.Name)
	}

	run := entityByQN(t, entities, "main.go::Server:3.Run:7").(model.Function)
	if !run.IsMethod {
		t.Error("receiver method must be flagged IsMethod")
	}
	if !hasRel(rels, "main.go::Server:3", "main.go::Server:3.Run:7", model.RelContains) {
		t.Error("method not contained by its receiver type")
	}

	field := entityByQN(t, entities, "main.go::Server:3.Name:4").(model.Attribute)
	if field.Type != "string" {
		t.Errorf("field type = %q", field.Type)
	}
}

func TestDynamicImportLiteralTargetsOnly(t *testing.T) {
	source := `import importlib

def load(name):
    importlib.import_module("plugins.core")
    importlib.import_module(name)
`
	entities, _ := parseSource(t, "load.py", lang.Python, source)

	dyn := entityByQN(t, entities, "plugins.core").(model.Module)
	if !dyn.IsDynamicImport {
		t.Error("literal runtime import must be flagged dynamic")
	}
	// The non-literal target must not produce a module.
	for _, e := range entities {
		if e.Label() == model.LabelModule && e.ID() != "plugins.core" && e.ID() != "importlib" {
			t.Errorf("unexpected module %q", e.ID())
		}
	}
}

func TestSameNameDifferentLinesStayDistinct(t *testing.T) {
	source := `def f():
    pass

def f():
    return 1
`
	entities, _ := parseSource(t, "dup.py", lang.Python, source)

	entityByQN(t, entities, "dup.py::f:1")
	entityByQN(t, entities, "dup.py::f:4")
}

func TestBOMStrippedBeforeParsing(t *testing.T) {
	source := "\xef\xbb\xbfdef f():\n    pass\n"
	entities, _ := parseSource(t, "bom.py", lang.Python, source)

	fn := entityByQN(t, entities, "bom.py::f:1").(model.Function)
	if fn.LineStart != 1 {
		t.Errorf("LineStart = %d, want 1", fn.LineStart)
	}
}
