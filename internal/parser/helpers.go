package parser

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/lang"
)

// definitionName resolves the declared name of a class-like node.
func (x *extractor) definitionName(node *tree_sitter.Node) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return NodeText(nameNode, x.source)
	}
	return ""
}

// functionName resolves the declared name of a function-like node, covering
// the arrow-function-assigned-to-const shape from JS/TS.
func (x *extractor) functionName(node *tree_sitter.Node) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return NodeText(nameNode, x.source)
	}
	if node.Kind() == "arrow_function" || node.Kind() == "function_expression" {
		if p := node.Parent(); p != nil && p.Kind() == "variable_declarator" {
			if nameNode := p.ChildByFieldName("name"); nameNode != nil {
				return NodeText(nameNode, x.source)
			}
		}
	}
	return ""
}

// goReceiverType returns the bare receiver type name of a Go method.
func (x *extractor) goReceiverType(node *tree_sitter.Node) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	var typeName string
	Walk(recv, func(n *tree_sitter.Node) bool {
		if n.Kind() == "type_identifier" {
			typeName = NodeText(n, x.source)
			return false
		}
		return true
	})
	return typeName
}

// isGoClassSpec reports whether a Go type_spec declares a struct or interface.
func (x *extractor) isGoClassSpec(node *tree_sitter.Node) bool {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return false
	}
	switch typeNode.Kind() {
	case "struct_type", "interface_type":
		return true
	}
	return false
}

// baseTypeName strips generic arguments and path prefixes from a type name.
func baseTypeName(name string) string {
	if i := strings.IndexAny(name, "<["); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	return strings.TrimSpace(name)
}

// parameters extracts parameter names and their declared types.
func (x *extractor) parameters(node *tree_sitter.Node) (names, types []string) {
	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode == nil {
		return nil, nil
	}
	for i := uint(0); i < paramsNode.NamedChildCount(); i++ {
		param := paramsNode.NamedChild(i)
		if param == nil || param.Kind() == "comment" {
			continue
		}
		name, typ := x.parameterParts(param)
		if name == "" {
			continue
		}
		names = append(names, name)
		if typ != "" {
			types = append(types, typ)
		}
	}
	return names, types
}

// parameterParts splits one parameter node into its name and type text.
func (x *extractor) parameterParts(param *tree_sitter.Node) (name, typ string) {
	switch param.Kind() {
	case "identifier", "field_identifier", "self", "this":
		return NodeText(param, x.source), ""
	case "self_parameter": // Rust &self / &mut self
		return "self", ""
	}

	if typeNode := param.ChildByFieldName("type"); typeNode != nil {
		typ = NodeText(typeNode, x.source)
	}
	if nameNode := param.ChildByFieldName("name"); nameNode != nil {
		return NodeText(nameNode, x.source), typ
	}
	if patNode := param.ChildByFieldName("pattern"); patNode != nil {
		return NodeText(patNode, x.source), typ
	}
	// default_parameter / typed_default_parameter and similar wrappers:
	// the name is the first identifier descendant.
	var found string
	Walk(param, func(n *tree_sitter.Node) bool {
		if found != "" {
			return false
		}
		if n.Kind() == "identifier" || n.Kind() == "field_identifier" {
			found = NodeText(n, x.source)
			return false
		}
		return true
	})
	return found, typ
}

// returnType extracts the declared return type, if any.
func (x *extractor) returnType(node *tree_sitter.Node) string {
	for _, field := range []string{"return_type", "result", "type"} {
		if rt := node.ChildByFieldName(field); rt != nil {
			return strings.TrimSpace(strings.TrimPrefix(NodeText(rt, x.source), "->"))
		}
	}
	return ""
}

// isAsync reports whether the definition carries the language's async marker.
func (x *extractor) isAsync(node *tree_sitter.Node) bool {
	if x.spec.AsyncKeyword == "" {
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == x.spec.AsyncKeyword {
			return true
		}
	}
	return false
}

// isStatic reports a static member via decorator (Python) or modifier
// keyword (Java, TypeScript).
func (x *extractor) isStatic(node *tree_sitter.Node, decorators []string) bool {
	if hasDecorator(decorators, "staticmethod") {
		return true
	}
	if x.spec.StaticKeyword == "" {
		return false
	}
	return x.hasModifier(node, x.spec.StaticKeyword)
}

// hasModifier scans direct children and a "modifiers" child for a keyword.
func (x *extractor) hasModifier(node *tree_sitter.Node, keyword string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == keyword {
			return true
		}
		if child.Kind() == "modifiers" {
			for j := uint(0); j < child.ChildCount(); j++ {
				if m := child.Child(j); m != nil && m.Kind() == keyword {
					return true
				}
			}
		}
	}
	return false
}

// decoratorsOf collects decorator/annotation names attached to a definition,
// in source order, stripped of "@" and argument lists.
func (x *extractor) decoratorsOf(node *tree_sitter.Node) []string {
	if len(x.spec.DecoratorNodeTypes) == 0 {
		return nil
	}
	decoKinds := toSet(x.spec.DecoratorNodeTypes)
	var names []string

	add := func(n *tree_sitter.Node) {
		text := strings.TrimPrefix(NodeText(n, x.source), "@")
		if i := strings.IndexAny(text, "(\n"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text != "" {
			names = append(names, text)
		}
	}

	// Python: decorators are siblings inside a decorated_definition wrapper.
	if p := node.Parent(); p != nil && p.Kind() == "decorated_definition" {
		for i := uint(0); i < p.ChildCount(); i++ {
			if c := p.Child(i); c != nil && decoKinds[c.Kind()] {
				add(c)
			}
		}
		return names
	}

	// Java: annotations live inside the modifiers child.
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if decoKinds[child.Kind()] {
			add(child)
			continue
		}
		if child.Kind() == "modifiers" {
			for j := uint(0); j < child.ChildCount(); j++ {
				if m := child.Child(j); m != nil && decoKinds[m.Kind()] {
					add(m)
				}
			}
		}
	}
	if len(names) > 0 {
		return names
	}

	// TS/Rust: decorators/attributes precede the definition as siblings.
	for prev := node.PrevNamedSibling(); prev != nil && decoKinds[prev.Kind()]; prev = prev.PrevNamedSibling() {
		add(prev)
	}
	// preceding-sibling scan collects in reverse source order
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

func hasDecorator(decorators []string, name string) bool {
	for _, d := range decorators {
		if d == name || strings.HasSuffix(d, "."+name) {
			return true
		}
	}
	return false
}

// baseClasses extracts the declared base class / interface names.
func (x *extractor) baseClasses(node *tree_sitter.Node) []string {
	var bases []string
	appendName := func(n *tree_sitter.Node) {
		text := baseTypeName(NodeText(n, x.source))
		if text != "" {
			bases = append(bases, text)
		}
	}

	switch x.language {
	case lang.Python:
		if supers := node.ChildByFieldName("superclasses"); supers != nil {
			for i := uint(0); i < supers.NamedChildCount(); i++ {
				child := supers.NamedChild(i)
				if child == nil {
					continue
				}
				switch child.Kind() {
				case "identifier", "attribute":
					bases = append(bases, NodeText(child, x.source))
				}
			}
		}
	case lang.Java:
		if sc := node.ChildByFieldName("superclass"); sc != nil {
			Walk(sc, func(n *tree_sitter.Node) bool {
				if n.Kind() == "type_identifier" {
					appendName(n)
					return false
				}
				return true
			})
		}
		if ifaces := node.ChildByFieldName("interfaces"); ifaces != nil {
			Walk(ifaces, func(n *tree_sitter.Node) bool {
				if n.Kind() == "type_identifier" {
					appendName(n)
				}
				return true
			})
		}
	case lang.JavaScript, lang.TypeScript, lang.TSX:
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil || child.Kind() != "class_heritage" {
				continue
			}
			Walk(child, func(n *tree_sitter.Node) bool {
				switch n.Kind() {
				case "identifier", "member_expression":
					bases = append(bases, NodeText(n, x.source))
					return false
				}
				return true
			})
		}
	}
	return bases
}

func (x *extractor) isAbstractClass(node *tree_sitter.Node, bases []string) bool {
	if node.Kind() == "abstract_class_declaration" || node.Kind() == "interface_declaration" || node.Kind() == "trait_item" {
		return true
	}
	if x.hasModifier(node, "abstract") {
		return true
	}
	for _, b := range bases {
		for _, ab := range x.spec.AbstractBases {
			if b == ab {
				return true
			}
		}
	}
	return false
}

func (x *extractor) isDataclass(node *tree_sitter.Node, decorators []string) bool {
	if node.Kind() == "record_declaration" {
		return true
	}
	for _, d := range x.spec.DataclassDecorators {
		if hasDecorator(decorators, lastSegment(d)) || hasDecorator(decorators, d) {
			return true
		}
	}
	return false
}

// isExceptionClass flags exception types by declared base or conventional
// name suffix.
func isExceptionClass(name string, bases []string, spec *lang.Spec) bool {
	for _, b := range bases {
		base := lastSegment(b)
		for _, eb := range spec.ExceptionBases {
			if base == eb {
				return true
			}
		}
		if strings.HasSuffix(base, "Error") || strings.HasSuffix(base, "Exception") {
			return true
		}
	}
	return strings.HasSuffix(name, "Error") || strings.HasSuffix(name, "Exception")
}

func lastSegment(dotted string) string {
	if i := strings.LastIndex(dotted, "."); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}

// docstring extracts the documentation attached to a definition: the leading
// string statement of a Python body, or the contiguous comment block directly
// above the definition elsewhere.
func (x *extractor) docstring(node *tree_sitter.Node) string {
	if x.language == lang.Python {
		if body := node.ChildByFieldName("body"); body != nil {
			return pythonBlockDocstring(body, x.source)
		}
		return ""
	}

	anchor := node
	// Python-style wrappers aside, decorated/attributed nodes anchor the
	// comment scan at the outermost wrapper.
	if p := node.Parent(); p != nil && p.Kind() == "decorated_definition" {
		anchor = p
	}

	var lines []string
	for prev := anchor.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		kind := prev.Kind()
		if kind != "comment" && kind != "line_comment" && kind != "block_comment" {
			break
		}
		if prev.EndPosition().Row+1 < anchor.StartPosition().Row && len(lines) == 0 {
			break // detached comment block
		}
		lines = append([]string{cleanComment(NodeText(prev, x.source))}, lines...)
		anchor = prev
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// pythonBlockDocstring returns the docstring of a module or suite body.
func pythonBlockDocstring(block *tree_sitter.Node, source []byte) string {
	first := block.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	str := first.NamedChild(0)
	if str == nil || str.Kind() != "string" {
		return ""
	}
	return trimPythonString(NodeText(str, source))
}

func trimPythonString(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

func cleanComment(s string) string {
	s = strings.TrimPrefix(s, "///")
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimPrefix(s, "#")
	if strings.HasPrefix(s, "/*") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "/*"), "*/")
	}
	return strings.TrimSpace(s)
}

// bodyContains reports whether the function's own body contains any of the
// given node kinds, without descending into nested definitions.
func (x *extractor) bodyContains(node *tree_sitter.Node, kinds []string) bool {
	if len(kinds) == 0 {
		return false
	}
	want := toSet(kinds)
	found := false
	var visit func(n *tree_sitter.Node, root bool)
	visit = func(n *tree_sitter.Node, root bool) {
		if found || n == nil {
			return
		}
		kind := n.Kind()
		if want[kind] {
			found = true
			return
		}
		if !root && (x.funcKinds[kind] || x.classKinds[kind]) {
			return // nested definition: its returns/yields are not ours
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			visit(n.Child(i), false)
		}
	}
	visit(node, true)
	return found
}

// countBranching counts decision-point nodes in the definition's subtree.
func (x *extractor) countBranching(node *tree_sitter.Node) int {
	if len(x.spec.BranchingNodeTypes) == 0 {
		return 0
	}
	want := toSet(x.spec.BranchingNodeTypes)
	count := 0
	Walk(node, func(n *tree_sitter.Node) bool {
		if want[n.Kind()] {
			count++
		}
		return true
	})
	return count
}

// attributeName resolves the declared name of a class field node.
func (x *extractor) attributeName(node *tree_sitter.Node) string {
	// Python class-level assignment: name is the left operand.
	if node.Kind() == "assignment" || node.Kind() == "augmented_assignment" {
		left := node.ChildByFieldName("left")
		if left != nil && left.Kind() == "identifier" {
			return NodeText(left, x.source)
		}
		return ""
	}
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return NodeText(nameNode, x.source)
	}
	// Go field_declaration / Java variable_declarator shapes.
	var found string
	Walk(node, func(n *tree_sitter.Node) bool {
		if found != "" {
			return false
		}
		switch n.Kind() {
		case "field_identifier", "identifier", "property_identifier":
			found = NodeText(n, x.source)
			return false
		}
		return true
	})
	return found
}

func (x *extractor) attributeType(node *tree_sitter.Node) string {
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		return NodeText(typeNode, x.source)
	}
	return ""
}

// importTargets returns the module names referenced by a static import node.
func (x *extractor) importTargets(node *tree_sitter.Node) []string {
	var targets []string

	switch x.language {
	case lang.Python:
		if node.Kind() == "import_from_statement" {
			if mod := node.ChildByFieldName("module_name"); mod != nil {
				targets = append(targets, NodeText(mod, x.source))
			}
			return targets
		}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "dotted_name":
				targets = append(targets, NodeText(child, x.source))
			case "aliased_import":
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					targets = append(targets, NodeText(nameNode, x.source))
				}
			}
		}

	case lang.Go:
		Walk(node, func(n *tree_sitter.Node) bool {
			if n.Kind() != "import_spec" {
				return true
			}
			if pathNode := n.ChildByFieldName("path"); pathNode != nil {
				targets = append(targets, stripQuotes(NodeText(pathNode, x.source)))
			}
			return false
		})

	case lang.JavaScript, lang.TypeScript, lang.TSX:
		if src := node.ChildByFieldName("source"); src != nil {
			targets = append(targets, stripQuotes(NodeText(src, x.source)))
		}

	case lang.Java:
		Walk(node, func(n *tree_sitter.Node) bool {
			if n.Kind() == "scoped_identifier" {
				targets = append(targets, NodeText(n, x.source))
				return false
			}
			return true
		})

	case lang.Rust:
		if arg := node.ChildByFieldName("argument"); arg != nil {
			targets = append(targets, strings.TrimSuffix(NodeText(arg, x.source), ";"))
		}
	}
	return targets
}

// calleeText returns the source text of a call's callee expression.
func (x *extractor) calleeText(call *tree_sitter.Node) string {
	if fn := call.ChildByFieldName("function"); fn != nil {
		return NodeText(fn, x.source)
	}
	// Java method_invocation: object "." name
	if nameNode := call.ChildByFieldName("name"); nameNode != nil {
		name := NodeText(nameNode, x.source)
		if obj := call.ChildByFieldName("object"); obj != nil {
			return NodeText(obj, x.source) + "." + name
		}
		return name
	}
	// new_expression / object_creation_expression
	if cons := call.ChildByFieldName("constructor"); cons != nil {
		return NodeText(cons, x.source)
	}
	if typ := call.ChildByFieldName("type"); typ != nil {
		return NodeText(typ, x.source)
	}
	return ""
}

// calleeNode returns the syntax node occupying the callee position.
func (x *extractor) calleeNode(call *tree_sitter.Node) *tree_sitter.Node {
	for _, field := range []string{"function", "constructor", "type", "name"} {
		if n := call.ChildByFieldName(field); n != nil {
			return n
		}
	}
	return nil
}

// firstStringArgument returns the unquoted first argument when it is a
// string literal, else "".
func (x *extractor) firstStringArgument(call *tree_sitter.Node) string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	first := args.NamedChild(0)
	if first == nil {
		return ""
	}
	switch first.Kind() {
	case "string", "interpreted_string_literal", "string_literal", "raw_string_literal":
		text := NodeText(first, x.source)
		if strings.ContainsAny(text, "{$") && strings.Contains(text, "{") {
			return "" // interpolated literal: not statically resolvable
		}
		return stripQuotes(trimPythonQuotes(text))
	}
	return ""
}

func trimPythonQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
