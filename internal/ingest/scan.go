package ingest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/codegraphhq/codegraph/internal/lang"
)

// ignoreDirs are directory names skipped during repository scans.
var ignoreDirs = map[string]bool{
	".cache": true, ".eggs": true, ".env": true, ".git": true,
	".gradle": true, ".hg": true, ".idea": true, ".mypy_cache": true,
	".nox": true, ".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".pytest_cache": true, ".ruff_cache": true, ".svn": true, ".tox": true,
	".venv": true, ".vs": true, ".vscode": true, ".yarn": true,
	"__pycache__": true, "bin": true, "bower_components": true,
	"build": true, "coverage": true, "dist": true, "env": true,
	"htmlcov": true, "node_modules": true, "obj": true, "out": true,
	"site-packages": true, "target": true, "tmp": true, "vendor": true,
	"venv": true,
}

// ignoreSuffixes are file suffixes skipped during repository scans.
var ignoreSuffixes = map[string]bool{
	".tmp": true, "~": true, ".pyc": true, ".pyo": true,
	".o": true, ".a": true, ".so": true, ".dll": true, ".class": true,
	".min.js": true,
}

// FileInfo is one discovered source file.
type FileInfo struct {
	Path     string // absolute path
	RelPath  string // slash-separated, relative to the repo root
	Language lang.Language
}

// ScanOptions narrows a scan beyond the built-in ignore tables. Include and
// Ignore hold glob patterns matched against repo-relative slash paths; an
// empty Include set admits every supported file.
type ScanOptions struct {
	Include    []string
	Ignore     []string
	IgnoreFile string // defaults to <root>/.codegraphignore
}

// globSet is a compiled pattern list.
type globSet []glob.Glob

func compileGlobs(patterns []string) (globSet, error) {
	set := make(globSet, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		set = append(set, g)
	}
	return set, nil
}

func (s globSet) matches(rel string) bool {
	for _, g := range s {
		if g.Match(rel) || g.Match(filepath.Base(rel)) {
			return true
		}
	}
	return false
}

// Scan walks a repository and returns every supported source file in walk
// order, honoring the built-in ignore tables, the optional ignore file, and
// caller-supplied include/ignore globs.
func Scan(ctx context.Context, root string, opts *ScanOptions) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &ScanOptions{}
	}
	ignorePatterns := append([]string(nil), opts.Ignore...)
	ignoreFile := opts.IgnoreFile
	if ignoreFile == "" {
		ignoreFile = filepath.Join(root, ".codegraphignore")
	}
	if extra, err := loadIgnoreFile(ignoreFile); err == nil {
		ignorePatterns = append(ignorePatterns, extra...)
	}

	include, err := compileGlobs(opts.Include)
	if err != nil {
		return nil, err
	}
	ignore, err := compileGlobs(ignorePatterns)
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && (ignoreDirs[info.Name()] || ignore.matches(rel)) {
				return filepath.SkipDir
			}
			return nil
		}

		for suffix := range ignoreSuffixes {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}
		if ignore.matches(rel) {
			return nil
		}
		if len(include) > 0 && !include.matches(rel) {
			return nil
		}

		l := lang.Detect(filepath.Ext(path))
		if l == lang.Unknown {
			return nil
		}
		files = append(files, FileInfo{Path: path, RelPath: rel, Language: l})
		return nil
	})
	return files, err
}

// loadIgnoreFile reads one glob pattern per line, skipping blanks and
// comments.
func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
