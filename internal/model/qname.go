package model

import (
	"fmt"
	"path/filepath"
)

// Qualified names are the identity keys of the graph. The scheme is
// deterministic given only the source text, so re-ingesting an unchanged
// file upserts instead of duplicating:
//
//	file:                 repo-relative slash path
//	top-level definition: {file}::{name}:{def_line}
//	nested member:        {parent_qualified_name}.{name}:{def_line}
//
// Embedding the definition line disambiguates same-named siblings (nested
// scopes, overloads at different lines) without a global counter.

// FileQN returns the qualified name of a file entity.
func FileQN(relPath string) string {
	return filepath.ToSlash(relPath)
}

// TopLevelQN returns the qualified name of a definition contained directly
// by its file.
func TopLevelQN(relPath, name string, defLine int) string {
	return fmt.Sprintf("%s::%s:%d", FileQN(relPath), name, defLine)
}

// NestedQN returns the qualified name of a member nested inside another
// definition (a method in a class, a class in a class).
func NestedQN(parentQN, name string, defLine int) string {
	return fmt.Sprintf("%s.%s:%d", parentQN, name, defLine)
}

// ChildQN derives a child's qualified name from its parent. A file parent
// yields a top-level name, any other parent a nested one.
func ChildQN(parentQN, relPath, name string, defLine int) string {
	if parentQN == FileQN(relPath) {
		return TopLevelQN(relPath, name, defLine)
	}
	return NestedQN(parentQN, name, defLine)
}
