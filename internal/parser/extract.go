package parser

import (
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/model"
)

// extractor carries per-file state through one extraction walk. No state is
// shared between files, which is what makes the bulk variant embarrassingly
// parallel.
type extractor struct {
	source   []byte
	relPath  string
	language lang.Language
	spec     *lang.Spec

	fileQN   string
	entities []model.Entity
	seen     map[string]bool
	modules  map[string]bool

	funcKinds  map[string]bool
	classKinds map[string]bool
	attrKinds  map[string]bool
	callKinds  map[string]bool
	imprtKinds map[string]bool

	// topClasses maps same-file type names to class qualified names, used to
	// attach Go receiver methods and Rust impl methods to their type.
	topClasses map[string]string
}

// scope is the containment context during the definition walk.
type scope struct {
	parentQN    string
	parentLabel model.Label
	classDepth  int
}

// ExtractEntities walks a parsed tree and returns exactly one File entity
// plus its structural children. Containment is hierarchical: a method's
// parent is its enclosing class, never the file.
func ExtractEntities(tree *tree_sitter.Tree, source []byte, relPath string, language lang.Language) []model.Entity {
	spec := lang.ForLanguage(language)
	root := tree.RootNode()

	x := &extractor{
		source:     source,
		relPath:    relPath,
		language:   language,
		spec:       spec,
		fileQN:     model.FileQN(relPath),
		seen:       make(map[string]bool),
		modules:    make(map[string]bool),
		topClasses: make(map[string]string),
	}

	file := model.File{
		Base: model.Base{
			QualifiedName: x.fileQN,
			Name:          filepath.Base(relPath),
			FilePath:      x.fileQN,
			LineStart:     1,
			LineEnd:       lineOf(root.EndPosition().Row) + 1,
		},
		Language:  string(language),
		Extension: filepath.Ext(relPath),
	}
	if language == lang.Python {
		file.Docstring = pythonBlockDocstring(root, source)
	}
	x.entities = append(x.entities, file)
	x.seen[x.fileQN] = true

	if spec == nil {
		return x.entities
	}

	x.funcKinds = toSet(spec.FunctionNodeTypes)
	x.classKinds = toSet(spec.ClassNodeTypes)
	x.attrKinds = toSet(spec.AttributeNodeTypes)
	x.callKinds = toSet(spec.CallNodeTypes)
	x.imprtKinds = toSet(append(append([]string{}, spec.ImportNodeTypes...), spec.ImportFromTypes...))

	x.collectTopClasses(root)
	x.walkDefs(root, scope{parentQN: x.fileQN, parentLabel: model.LabelFile})

	return x.entities
}

// collectTopClasses records the qualified names top-level type definitions
// will get, so receiver methods and impl blocks can resolve their class
// before the class node itself is visited.
func (x *extractor) collectTopClasses(root *tree_sitter.Node) {
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		// Go wraps type_spec in a type_declaration.
		if child.Kind() == "type_declaration" {
			for j := uint(0); j < child.ChildCount(); j++ {
				if ts := child.Child(j); ts != nil && ts.Kind() == "type_spec" {
					x.recordTopClass(ts)
				}
			}
			continue
		}
		if x.classKinds[child.Kind()] {
			x.recordTopClass(child)
		}
	}
}

func (x *extractor) recordTopClass(node *tree_sitter.Node) {
	name := x.definitionName(node)
	if name == "" {
		return
	}
	x.topClasses[name] = model.TopLevelQN(x.relPath, name, startLine(node))
}

// walkDefs recursively extracts definitions, threading the containment scope.
func (x *extractor) walkDefs(node *tree_sitter.Node, sc scope) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		kind := child.Kind()

		switch {
		case x.imprtKinds[kind]:
			x.extractImports(child)

		case x.callKinds[kind]:
			x.extractDynamicImport(child)
			// calls can contain definitions (callbacks, IIFEs)
			x.walkDefs(child, sc)

		case kind == "impl_item":
			x.walkImplBlock(child, sc)

		case x.funcKinds[kind]:
			x.extractFunction(child, sc)

		case x.classKinds[kind]:
			x.extractClass(child, sc)

		case sc.parentLabel == model.LabelClass && x.attrKinds[kind]:
			x.extractAttribute(child, sc)

		default:
			x.walkDefs(child, sc)
		}
	}
}

// walkImplBlock attaches Rust impl methods to the implemented type's class
// entity when that type is defined in the same file, else to the file.
func (x *extractor) walkImplBlock(node *tree_sitter.Node, sc scope) {
	parentQN := x.fileQN
	parentLabel := model.LabelFile
	depth := sc.classDepth
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		name := strings.TrimPrefix(NodeText(typeNode, x.source), "&")
		if qn, ok := x.topClasses[baseTypeName(name)]; ok {
			parentQN = qn
			parentLabel = model.LabelClass
			depth++
		}
	}
	x.walkDefs(node, scope{parentQN: parentQN, parentLabel: parentLabel, classDepth: depth})
}

func (x *extractor) extractFunction(node *tree_sitter.Node, sc scope) {
	name := x.functionName(node)
	if name == "" {
		// anonymous function: keep scanning its body in the current scope
		x.walkDefs(node, sc)
		return
	}

	parentQN := sc.parentQN
	parentLabel := sc.parentLabel

	// Go methods are not lexically nested; attach to the receiver type.
	if node.Kind() == "method_declaration" {
		if recv := x.goReceiverType(node); recv != "" {
			if qn, ok := x.topClasses[recv]; ok {
				parentQN = qn
				parentLabel = model.LabelClass
			}
		}
	}

	line := startLine(node)
	qn := model.ChildQN(parentQN, x.relPath, name, line)
	if x.seen[qn] {
		return
	}
	x.seen[qn] = true

	decorators := x.decoratorsOf(node)
	params, paramTypes := x.parameters(node)

	fn := model.Function{
		Base: model.Base{
			QualifiedName: qn,
			Name:          name,
			FilePath:      x.fileQN,
			LineStart:     line,
			LineEnd:       endLine(node),
			Docstring:     x.docstring(node),
		},
		Parameters:     params,
		ParameterTypes: paramTypes,
		ReturnType:     x.returnType(node),
		IsAsync:        x.isAsync(node),
		IsMethod:       parentLabel == model.LabelClass || node.Kind() == "method_declaration" || node.Kind() == "method_definition",
		IsStatic:       x.isStatic(node, decorators),
		IsClassmethod:  hasDecorator(decorators, "classmethod"),
		IsProperty:     hasDecorator(decorators, "property") || hasDecorator(decorators, "cached_property"),
		HasReturn:      x.bodyContains(node, x.spec.ReturnNodeTypes),
		HasYield:       x.bodyContains(node, x.spec.YieldNodeTypes),
		Decorators:     decorators,
		Complexity:     x.countBranching(node),
	}
	x.entities = append(x.entities, fn)

	// nested definitions are contained by this function
	x.walkDefs(node, scope{parentQN: qn, parentLabel: model.LabelFunction, classDepth: sc.classDepth})
}

func (x *extractor) extractClass(node *tree_sitter.Node, sc scope) {
	// Go only models struct and interface type specs as classes.
	if node.Kind() == "type_spec" && !x.isGoClassSpec(node) {
		return
	}

	name := x.definitionName(node)
	if name == "" {
		return
	}

	line := startLine(node)
	qn := model.ChildQN(sc.parentQN, x.relPath, name, line)
	if x.seen[qn] {
		return
	}
	x.seen[qn] = true

	decorators := x.decoratorsOf(node)
	bases := x.baseClasses(node)

	cls := model.Class{
		Base: model.Base{
			QualifiedName: qn,
			Name:          name,
			FilePath:      x.fileQN,
			LineStart:     line,
			LineEnd:       endLine(node),
			Docstring:     x.docstring(node),
		},
		Decorators:   decorators,
		IsAbstract:   x.isAbstractClass(node, bases),
		IsDataclass:  x.isDataclass(node, decorators),
		IsException:  isExceptionClass(name, bases, x.spec),
		NestingLevel: sc.classDepth,
	}
	x.entities = append(x.entities, cls)

	x.walkDefs(node, scope{parentQN: qn, parentLabel: model.LabelClass, classDepth: sc.classDepth + 1})
}

func (x *extractor) extractAttribute(node *tree_sitter.Node, sc scope) {
	name := x.attributeName(node)
	if name == "" {
		return
	}

	line := startLine(node)
	qn := model.NestedQN(sc.parentQN, name, line)
	if x.seen[qn] {
		return
	}
	x.seen[qn] = true

	attr := model.Attribute{
		Base: model.Base{
			QualifiedName: qn,
			Name:          name,
			FilePath:      x.fileQN,
			LineStart:     line,
			LineEnd:       endLine(node),
		},
		Type: x.attributeType(node),
	}
	x.entities = append(x.entities, attr)
}

// extractImports emits a Module entity per static import target.
func (x *extractor) extractImports(node *tree_sitter.Node) {
	for _, target := range x.importTargets(node) {
		x.addModule(target, startLine(node), endLine(node), false)
	}
}

// extractDynamicImport emits a Module for runtime imports whose argument is
// a literal string. Non-literal targets are unresolvable by construction and
// are deliberately skipped.
func (x *extractor) extractDynamicImport(call *tree_sitter.Node) {
	if len(x.spec.DynamicImportCallees) == 0 {
		return
	}
	callee := x.calleeText(call)
	if callee == "" {
		return
	}
	match := false
	for _, name := range x.spec.DynamicImportCallees {
		if callee == name {
			match = true
			break
		}
	}
	if !match {
		return
	}
	target := x.firstStringArgument(call)
	if target == "" {
		return
	}
	x.addModule(target, startLine(call), endLine(call), true)
}

func (x *extractor) addModule(target string, lineStart, lineEnd int, dynamic bool) {
	if target == "" || x.modules[target] {
		return
	}
	x.modules[target] = true

	name := target
	if i := strings.LastIndexAny(target, "./:"); i >= 0 && i+1 < len(target) {
		name = target[i+1:]
	}
	x.entities = append(x.entities, model.Module{
		Base: model.Base{
			QualifiedName: target,
			Name:          name,
			FilePath:      x.fileQN,
			LineStart:     lineStart,
			LineEnd:       lineEnd,
		},
		IsDynamicImport: dynamic,
	})
}

func toSet(ss []string) map[string]bool {
	set := make(map[string]bool, len(ss))
	for _, s := range ss {
		set[s] = true
	}
	return set
}

func startLine(node *tree_sitter.Node) int { return lineOf(node.StartPosition().Row) + 1 }
func endLine(node *tree_sitter.Node) int   { return lineOf(node.EndPosition().Row) + 1 }

// lineOf clamps a tree-sitter row (uint) into int range.
func lineOf(row uint) int {
	const maxInt = int(^uint(0) >> 1)
	if row > uint(maxInt) {
		return maxInt
	}
	return int(row)
}
