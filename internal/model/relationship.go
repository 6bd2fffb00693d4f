package model

// RelType enumerates the relationship (edge) types of the graph.
type RelType string

const (
	RelContains RelType = "CONTAINS"
	RelImports  RelType = "IMPORTS"
	RelCalls    RelType = "CALLS"
	RelInherits RelType = "INHERITS"
	RelOverride RelType = "OVERRIDES"
	RelUses     RelType = "USES"
)

// AllRelTypes returns every relationship type, in a fixed order used by the
// graph fingerprint and the histogram introspection.
func AllRelTypes() []RelType {
	return []RelType{RelContains, RelImports, RelCalls, RelInherits, RelOverride, RelUses}
}

// AllLabels returns every entity label, in a fixed order matching AllRelTypes.
func AllLabels() []Label {
	return []Label{LabelFile, LabelModule, LabelClass, LabelFunction, LabelAttribute}
}

// Relationship is a directed edge between two qualified names. The target
// may reference an entity that was never ingested (an external or unresolved
// symbol); such edges are retained, not dropped.
type Relationship struct {
	SourceID   string
	TargetID   string
	Type       RelType
	Properties map[string]any
}

// NewRelationship builds a relationship with an optional property bag.
func NewRelationship(source, target string, t RelType, props map[string]any) Relationship {
	return Relationship{SourceID: source, TargetID: target, Type: t, Properties: props}
}
