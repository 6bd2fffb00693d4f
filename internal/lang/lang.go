// Package lang maps file extensions to languages and holds the per-language
// tree-sitter node-kind tables the extractor is driven by.
package lang

// Language represents a supported programming language.
type Language string

const (
	Python     Language = "python"
	Go         Language = "go"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Java       Language = "java"
	Rust       Language = "rust"
	Unknown    Language = "unknown"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{Python, Go, JavaScript, TypeScript, TSX, Java, Rust}
}

// Spec defines the tree-sitter node kinds for a language.
type Spec struct {
	Language       Language
	FileExtensions []string

	FunctionNodeTypes  []string
	ClassNodeTypes     []string
	AttributeNodeTypes []string // class/struct field node kinds
	CallNodeTypes      []string
	ImportNodeTypes    []string
	ImportFromTypes    []string

	// DecoratorNodeTypes lists decorator/annotation node kinds.
	DecoratorNodeTypes []string
	// BranchingNodeTypes lists node kinds counted for the complexity metric.
	BranchingNodeTypes []string
	// ReturnNodeTypes / YieldNodeTypes mark function bodies for
	// has_return / has_yield.
	ReturnNodeTypes []string
	YieldNodeTypes  []string
	// ReferenceNodeTypes lists identifier-reference kinds considered for
	// USES edges.
	ReferenceNodeTypes []string

	// AsyncKeyword is the literal child text marking an async definition
	// (empty when the language has none).
	AsyncKeyword string
	// StaticKeyword marks static members (Java "static").
	StaticKeyword string

	// DynamicImportCallees are callee names whose single literal string
	// argument is treated as a dynamically imported module.
	DynamicImportCallees []string
	// ExceptionBases are base-class names that flag a class as an
	// exception type.
	ExceptionBases []string
	// AbstractBases are base-class names that flag a class as abstract.
	AbstractBases []string
	// DataclassDecorators are decorator names that flag a class as a
	// dataclass-style record.
	DataclassDecorators []string
}

// registry maps file extensions to language specs.
var registry = map[string]*Spec{}

// Register adds a Spec to the registry, keyed by its file extensions.
func Register(spec *Spec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the Spec for a file extension (e.g. ".py").
func ForExtension(ext string) *Spec {
	return registry[ext]
}

// ForLanguage returns the Spec for a language.
func ForLanguage(l Language) *Spec {
	for _, spec := range registry {
		if spec.Language == l {
			return spec
		}
	}
	return nil
}

// Detect returns the Language for a file extension, or Unknown. Detection
// is purely extension-based; unknown-language files are scanned but produce
// no entities.
func Detect(ext string) Language {
	spec := registry[ext]
	if spec == nil {
		return Unknown
	}
	return spec.Language
}
