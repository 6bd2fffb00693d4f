package parser

import (
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/model"
)

// relExtractor resolves relationships against the entities already extracted
// from the same file. Resolution is best-effort: edges to targets that were
// never ingested keep the raw symbol as their target id.
type relExtractor struct {
	*extractor

	entityByQN map[string]model.Entity
	// nameIndex maps simple names to the qualified name of the first
	// function/class declaring them in this file.
	nameIndex map[string]string
	// defs are non-File, non-Module entities sorted by start line, used to
	// resolve the innermost enclosing definition of any source line.
	defs []defSpan

	rels    []model.Relationship
	relSeen map[string]bool
}

type defSpan struct {
	qn         string
	label      model.Label
	start, end int
}

// ExtractRelationships consumes the entities extracted from the same tree
// and produces the file's relationships. CONTAINS edges come straight from
// the qualified-name hierarchy; CALLS/USES/INHERITS/OVERRIDES come from a
// second scoped walk.
func ExtractRelationships(tree *tree_sitter.Tree, source []byte, relPath string, language lang.Language, entities []model.Entity) []model.Relationship {
	spec := lang.ForLanguage(language)
	if spec == nil {
		return nil
	}

	base := &extractor{
		source:     source,
		relPath:    relPath,
		language:   language,
		spec:       spec,
		fileQN:     model.FileQN(relPath),
		funcKinds:  toSet(spec.FunctionNodeTypes),
		classKinds: toSet(spec.ClassNodeTypes),
		attrKinds:  toSet(spec.AttributeNodeTypes),
		callKinds:  toSet(spec.CallNodeTypes),
		imprtKinds: toSet(append(append([]string{}, spec.ImportNodeTypes...), spec.ImportFromTypes...)),
	}

	r := &relExtractor{
		extractor:  base,
		entityByQN: make(map[string]model.Entity, len(entities)),
		nameIndex:  make(map[string]string),
		relSeen:    make(map[string]bool),
	}
	r.index(entities)

	r.emitContains(entities)
	r.emitImports(entities)
	r.walkBody(tree.RootNode(), false)
	r.emitInheritsAndOverrides(tree.RootNode())

	return r.rels
}

func (r *relExtractor) index(entities []model.Entity) {
	for _, e := range entities {
		r.entityByQN[e.ID()] = e
		switch e := e.(type) {
		case model.Function:
			if _, ok := r.nameIndex[e.Name]; !ok {
				r.nameIndex[e.Name] = e.QualifiedName
			}
			r.defs = append(r.defs, defSpan{e.QualifiedName, model.LabelFunction, e.LineStart, e.LineEnd})
		case model.Class:
			if _, ok := r.nameIndex[e.Name]; !ok {
				r.nameIndex[e.Name] = e.QualifiedName
			}
			r.defs = append(r.defs, defSpan{e.QualifiedName, model.LabelClass, e.LineStart, e.LineEnd})
		}
	}
	sort.Slice(r.defs, func(i, j int) bool { return r.defs[i].start < r.defs[j].start })
}

func (r *relExtractor) add(source, target string, t model.RelType, props map[string]any) {
	if source == "" || target == "" || source == target {
		return
	}
	key := source + "\x00" + string(t) + "\x00" + target
	if r.relSeen[key] {
		return
	}
	r.relSeen[key] = true
	r.rels = append(r.rels, model.NewRelationship(source, target, t, props))
}

// emitContains derives the containment hierarchy from qualified names:
// the parent of "f::a:1.b:2" is "f::a:1", the parent of "f::a:1" is "f".
func (r *relExtractor) emitContains(entities []model.Entity) {
	for _, e := range entities {
		switch e.Label() {
		case model.LabelFile, model.LabelModule:
			continue
		}
		if parent := parentQNOf(e.ID()); parent != "" {
			r.add(parent, e.ID(), model.RelContains, nil)
		}
	}
}

// parentQNOf returns the containment parent encoded in a qualified name, or
// "" for file and module names.
func parentQNOf(qn string) string {
	sep := strings.Index(qn, "::")
	if sep < 0 {
		return ""
	}
	rest := qn[sep+2:]
	if i := strings.LastIndex(rest, "."); i >= 0 {
		return qn[:sep+2+i]
	}
	return qn[:sep]
}

func (r *relExtractor) emitImports(entities []model.Entity) {
	for _, e := range entities {
		m, ok := e.(model.Module)
		if !ok {
			continue
		}
		r.add(r.fileQN, m.QualifiedName, model.RelImports, map[string]any{
			"line":       m.LineStart,
			"is_dynamic": m.IsDynamicImport,
		})
	}
}

// enclosingQN returns the qualified name of the innermost definition whose
// span contains the line, or the file itself.
func (r *relExtractor) enclosingQN(line int) string {
	best := r.fileQN
	bestSize := int(^uint(0) >> 1)
	for _, d := range r.defs {
		if d.start > line {
			break
		}
		if line <= d.end && d.end-d.start < bestSize {
			best = d.qn
			bestSize = d.end - d.start
		}
	}
	return best
}

// walkBody finds CALLS and USES. inCallee marks the callee subtree of a
// call expression, where identifier references are invocations rather than
// value uses.
func (r *relExtractor) walkBody(node *tree_sitter.Node, inCallee bool) {
	kind := node.Kind()

	if r.imprtKinds[kind] {
		return
	}

	if r.callKinds[kind] {
		r.emitCall(node)
		callee := r.calleeNode(node)
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			r.walkBody(child, callee != nil && child.Id() == callee.Id())
		}
		return
	}

	if !inCallee && isReferenceKind(kind, r.spec) {
		// composite references (attribute, selector_expression) still
		// descend: dedup keeps inner identifiers from double-counting
		r.emitUse(node)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		r.walkBody(child, inCallee)
	}
}

func isReferenceKind(kind string, spec *lang.Spec) bool {
	for _, k := range spec.ReferenceNodeTypes {
		if k == kind {
			return true
		}
	}
	return false
}

func (r *relExtractor) emitCall(call *tree_sitter.Node) {
	callee := r.calleeText(call)
	if callee == "" {
		return
	}
	line := startLine(call)
	source := r.enclosingQN(line)
	target := r.resolveSymbol(callee, source)
	r.add(source, target, model.RelCalls, map[string]any{"line": line})
}

// emitUse records a function or class referenced as a value: assigned,
// passed, or returned, but not invoked.
func (r *relExtractor) emitUse(node *tree_sitter.Node) {
	if r.isDefinitionName(node) {
		return
	}
	name := NodeText(node, r.source)
	if strings.Contains(name, "\n") {
		return
	}
	target, ok := r.nameIndex[lastDottedSegment(name)]
	if !ok {
		return
	}
	line := startLine(node)
	source := r.enclosingQN(line)
	if source == target {
		return
	}
	r.add(source, target, model.RelUses, map[string]any{"line": line, "kind": "reference"})
}

// isDefinitionName reports whether the identifier is the declared name of a
// definition (those are not references).
func (r *relExtractor) isDefinitionName(node *tree_sitter.Node) bool {
	p := node.Parent()
	if p == nil {
		return false
	}
	if !r.funcKinds[p.Kind()] && !r.classKinds[p.Kind()] && p.Kind() != "variable_declarator" {
		return false
	}
	nameNode := p.ChildByFieldName("name")
	return nameNode != nil && nameNode.Id() == node.Id()
}

// resolveSymbol maps a callee expression to a qualified name, best-effort.
// self/this receivers resolve within the enclosing class; bare names resolve
// against the file's definitions; everything else stays as the raw symbol.
func (r *relExtractor) resolveSymbol(symbol, sourceQN string) string {
	name := lastDottedSegment(symbol)

	if strings.HasPrefix(symbol, "self.") || strings.HasPrefix(symbol, "this.") {
		if classQN := r.enclosingClassQN(sourceQN); classQN != "" {
			if methodQN := r.methodOf(classQN, name); methodQN != "" {
				return methodQN
			}
		}
	}

	if !strings.ContainsAny(symbol, ".:") {
		if qn, ok := r.nameIndex[symbol]; ok {
			return qn
		}
		return symbol
	}

	if qn, ok := r.nameIndex[name]; ok {
		return qn
	}
	return symbol
}

// enclosingClassQN walks the qualified-name hierarchy up from a definition
// until it hits a class entity.
func (r *relExtractor) enclosingClassQN(qn string) string {
	for cur := qn; cur != ""; cur = parentQNOf(cur) {
		if e, ok := r.entityByQN[cur]; ok && e.Label() == model.LabelClass {
			return cur
		}
	}
	return ""
}

// methodOf returns the qualified name of a method declared directly on the
// class, or "".
func (r *relExtractor) methodOf(classQN, name string) string {
	for _, d := range r.defs {
		if d.label == model.LabelFunction && parentQNOf(d.qn) == classQN {
			if e, ok := r.entityByQN[d.qn]; ok {
				if fn, ok := e.(model.Function); ok && fn.Name == name {
					return d.qn
				}
			}
		}
	}
	return ""
}

func lastDottedSegment(s string) string {
	if i := strings.LastIndexAny(s, ".:"); i >= 0 && i+1 < len(s) {
		return s[i+1:]
	}
	return s
}

// emitInheritsAndOverrides walks class definitions for INHERITS edges and,
// when the base class is visible in the same file, OVERRIDES edges for
// same-named methods.
func (r *relExtractor) emitInheritsAndOverrides(root *tree_sitter.Node) {
	Walk(root, func(node *tree_sitter.Node) bool {
		if !r.classKinds[node.Kind()] {
			return true
		}
		name := r.definitionName(node)
		if name == "" {
			return true
		}
		line := startLine(node)
		classQN := r.resolveDefQN(name, line)
		if classQN == "" {
			return true
		}

		for _, base := range r.baseClasses(node) {
			targetQN := base
			if qn, ok := r.nameIndex[lastDottedSegment(base)]; ok {
				targetQN = qn
			}
			r.add(classQN, targetQN, model.RelInherits, map[string]any{"line": line})

			baseEntity, ok := r.entityByQN[targetQN]
			if !ok || baseEntity.Label() != model.LabelClass {
				continue
			}
			r.emitOverrides(classQN, targetQN)
		}
		return true
	})
}

// emitOverrides links each method of a subclass to the same-named method of
// a resolved base class.
func (r *relExtractor) emitOverrides(classQN, baseQN string) {
	for _, d := range r.defs {
		if d.label != model.LabelFunction || parentQNOf(d.qn) != classQN {
			continue
		}
		fn, ok := r.entityByQN[d.qn].(model.Function)
		if !ok {
			continue
		}
		if baseMethod := r.methodOf(baseQN, fn.Name); baseMethod != "" {
			r.add(d.qn, baseMethod, model.RelOverride, nil)
		}
	}
}

// resolveDefQN finds the entity declared with the given name at the given
// line.
func (r *relExtractor) resolveDefQN(name string, line int) string {
	for _, d := range r.defs {
		if d.start != line {
			continue
		}
		if e, ok := r.entityByQN[d.qn]; ok {
			switch e := e.(type) {
			case model.Class:
				if e.Name == name {
					return d.qn
				}
			case model.Function:
				if e.Name == name {
					return d.qn
				}
			}
		}
	}
	return ""
}
