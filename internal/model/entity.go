// Package model defines the typed graph entities and relationships produced
// by parsing and consumed by the graph store. Entities are transient value
// objects: they live from a parse call until the batch containing them is
// committed.
package model

// Label identifies the graph node label of an entity variant.
type Label string

const (
	LabelFile      Label = "File"
	LabelModule    Label = "Module"
	LabelClass     Label = "Class"
	LabelFunction  Label = "Function"
	LabelAttribute Label = "Attribute"
)

// Entity is a typed graph node. ID returns the globally unique qualified
// name; Props returns the flat property bag written to the store.
type Entity interface {
	Label() Label
	ID() string
	Props() map[string]any
}

// Base carries the fields shared by every entity variant.
type Base struct {
	QualifiedName string
	Name          string
	FilePath      string
	LineStart     int
	LineEnd       int
	Docstring     string
}

func (b Base) ID() string { return b.QualifiedName }

func (b Base) baseProps() map[string]any {
	props := map[string]any{
		"qualified_name": b.QualifiedName,
		"name":           b.Name,
		"file_path":      b.FilePath,
		"line_start":     b.LineStart,
		"line_end":       b.LineEnd,
	}
	if b.Docstring != "" {
		props["docstring"] = b.Docstring
	}
	return props
}

// File is the root entity of a parsed source file. Every other entity in the
// file descends from it through CONTAINS edges.
type File struct {
	Base
	Language  string
	Extension string
}

func (File) Label() Label { return LabelFile }

func (f File) Props() map[string]any {
	props := f.baseProps()
	props["language"] = f.Language
	props["extension"] = f.Extension
	return props
}

// Module represents an imported module. IsDynamicImport is true only when
// the import target was recovered from a literal string passed to a runtime
// import call; non-literal dynamic imports are unresolvable by construction
// and produce no Module at all.
type Module struct {
	Base
	IsDynamicImport bool
}

func (Module) Label() Label { return LabelModule }

func (m Module) Props() map[string]any {
	props := m.baseProps()
	props["is_dynamic_import"] = m.IsDynamicImport
	return props
}

// Class represents a class, struct or interface definition.
type Class struct {
	Base
	Decorators   []string
	IsAbstract   bool
	IsDataclass  bool
	IsException  bool
	NestingLevel int
}

func (Class) Label() Label { return LabelClass }

func (c Class) Props() map[string]any {
	props := c.baseProps()
	props["is_abstract"] = c.IsAbstract
	props["is_dataclass"] = c.IsDataclass
	props["is_exception"] = c.IsException
	props["nesting_level"] = c.NestingLevel
	if len(c.Decorators) > 0 {
		props["decorators"] = toAnySlice(c.Decorators)
	}
	return props
}

// Function represents a function or method definition.
type Function struct {
	Base
	Parameters     []string
	ParameterTypes []string
	ReturnType     string
	IsAsync        bool
	IsMethod       bool
	IsStatic       bool
	IsClassmethod  bool
	IsProperty     bool
	HasReturn      bool
	HasYield       bool
	Decorators     []string
	Complexity     int
}

func (Function) Label() Label { return LabelFunction }

func (f Function) Props() map[string]any {
	props := f.baseProps()
	props["parameters"] = toAnySlice(f.Parameters)
	props["is_async"] = f.IsAsync
	props["is_method"] = f.IsMethod
	props["is_static"] = f.IsStatic
	props["is_classmethod"] = f.IsClassmethod
	props["is_property"] = f.IsProperty
	props["has_return"] = f.HasReturn
	props["has_yield"] = f.HasYield
	props["complexity"] = f.Complexity
	if len(f.ParameterTypes) > 0 {
		props["parameter_types"] = toAnySlice(f.ParameterTypes)
	}
	if f.ReturnType != "" {
		props["return_type"] = f.ReturnType
	}
	if len(f.Decorators) > 0 {
		props["decorators"] = toAnySlice(f.Decorators)
	}
	return props
}

// Attribute represents a class-level field or attribute.
type Attribute struct {
	Base
	Type string
}

func (Attribute) Label() Label { return LabelAttribute }

func (a Attribute) Props() map[string]any {
	props := a.baseProps()
	if a.Type != "" {
		props["type"] = a.Type
	}
	return props
}

// toAnySlice converts []string to []any for driver parameter maps.
func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
