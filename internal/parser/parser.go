// Package parser implements the per-language parser contract: parsing source
// into tree-sitter syntax trees and extracting entities and relationships
// from them. Extraction is error-tolerant: a tree containing ERROR nodes
// still yields the entities that did parse.
package parser

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/codegraphhq/codegraph/internal/lang"
)

// Error is the per-file parse failure. File-level parse errors are isolated:
// they never escalate past the file that produced them.
type Error struct {
	Path     string
	Language lang.Language
	Msg      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %s (%s): %s", e.Path, e.Language, e.Msg)
}

var (
	languagesOnce sync.Once
	languages     map[lang.Language]*tree_sitter.Language
	parserPools   map[lang.Language]*sync.Pool
)

func initLanguages() {
	languagesOnce.Do(func() {
		languages = map[lang.Language]*tree_sitter.Language{
			lang.Python:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			lang.Go:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			lang.JavaScript: tree_sitter.NewLanguage(tree_sitter_javascript.Language()),
			lang.TypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			lang.TSX:        tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
			lang.Java:       tree_sitter.NewLanguage(tree_sitter_java.Language()),
			lang.Rust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		}

		parserPools = make(map[lang.Language]*sync.Pool, len(languages))
		for l, tsLang := range languages {
			tsLang := tsLang
			parserPools[l] = &sync.Pool{
				New: func() any {
					p := tree_sitter.NewParser()
					if err := p.SetLanguage(tsLang); err != nil {
						panic(fmt.Sprintf("set language: %v", err))
					}
					return p
				},
			}
		}
	})
}

// Supported reports whether a grammar is registered for the language.
func Supported(l lang.Language) bool {
	initLanguages()
	_, ok := languages[l]
	return ok
}

// Parse parses source code into a tree-sitter Tree. The caller must call
// tree.Close() when done. Parsers are pooled per language via sync.Pool to
// avoid per-file allocation.
func Parse(l lang.Language, path string, source []byte) (*tree_sitter.Tree, error) {
	initLanguages()

	pool, ok := parserPools[l]
	if !ok {
		return nil, &Error{Path: path, Language: l, Msg: "unsupported language"}
	}

	p, _ := pool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, &Error{Path: path, Language: l, Msg: "parser pool exhausted"}
	}
	tree := p.Parse(source, nil)
	pool.Put(p)

	if tree == nil || tree.RootNode() == nil {
		return nil, &Error{Path: path, Language: l, Msg: "no tree produced"}
	}

	return tree, nil
}

// StripBOM removes a UTF-8 byte order mark, common in Windows-generated
// files. Callers strip before Parse so extraction byte offsets line up.
func StripBOM(source []byte) []byte {
	if len(source) >= 3 && source[0] == 0xEF && source[1] == 0xBB && source[2] == 0xBF {
		return source[3:]
	}
	return source
}

// WalkFunc is called for each node during AST traversal.
// Return false to skip children.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk traverses the AST in depth-first order.
func Walk(node *tree_sitter.Node, fn WalkFunc) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			Walk(child, fn)
		}
	}
}

// NodeText returns the text content of a node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
