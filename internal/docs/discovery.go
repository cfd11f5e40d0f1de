// Package docs discovers documentation sources inside a documentation source tree.
package docs

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	derrors "git.home.luguber.info/inful/docpipe/internal/docs/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// DefaultSkipDirs are directory names never searched for sources.
var DefaultSkipDirs = []string{"_build", "_templates", "_static"}

// DocFile is one documentation source.
type DocFile struct {
	Path         string // absolute (or root-joined) path
	RelativePath string // slash-separated path relative to the docs root
	Section      string // directory part of RelativePath, "" at the root
	Name         string // file name without extension
	Extension    string // lower-case, including the dot
	Content      []byte // loaded on demand
}

// DocName is the document name used by cross references: the relative path without extension.
func (df DocFile) DocName() string {
	return strings.TrimSuffix(df.RelativePath, filepath.Ext(df.RelativePath))
}

// HTMLPath is the page the HTML builder produces for this source, relative to the output root.
func (df DocFile) HTMLPath() string {
	return df.DocName() + ".html"
}

// LoadContent reads the file once.
func (df *DocFile) LoadContent() error {
	if df.Content != nil {
		return nil
	}
	content, err := os.ReadFile(df.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", derrors.ErrFileReadFailed, df.Path, err)
	}
	df.Content = content
	return nil
}

// Options tunes discovery.
type Options struct {
	Suffixes []string // e.g. .rst .md .txt
	// Exclude lists absolute directories to skip, typically the output directory
	// when it is nested inside the docs tree.
	Exclude []string
}

// Discover walks root and returns every documentation source in lexical order.
// Hidden entries and DefaultSkipDirs are skipped.
func Discover(root string, opts Options) ([]DocFile, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", derrors.ErrDocsPathNotFound, root)
	}

	suffixes := make([]string, 0, len(opts.Suffixes))
	for _, s := range opts.Suffixes {
		suffixes = append(suffixes, strings.ToLower(s))
	}
	exclude := make([]string, 0, len(opts.Exclude))
	for _, e := range opts.Exclude {
		if abs, err := filepath.Abs(e); err == nil {
			exclude = append(exclude, abs)
		}
	}

	var files []DocFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") || slices.Contains(DefaultSkipDirs, name) || isExcluded(path, exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !slices.Contains(suffixes, ext) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("%w: %w", derrors.ErrInvalidRelativePath, err)
		}
		rel = filepath.ToSlash(rel)
		section := filepath.ToSlash(filepath.Dir(rel))
		if section == "." {
			section = ""
		}
		files = append(files, DocFile{
			Path:         path,
			RelativePath: rel,
			Section:      section,
			Name:         strings.TrimSuffix(name, filepath.Ext(name)),
			Extension:    ext,
		})
		slog.Debug("Discovered documentation source", logfields.File(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", derrors.ErrDocsDirWalkFailed, err)
	}
	return files, nil
}

func isExcluded(path string, exclude []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return slices.Contains(exclude, abs)
}

// Index maps DocName to DocFile for cross-reference resolution.
func Index(files []DocFile) map[string]DocFile {
	idx := make(map[string]DocFile, len(files))
	for _, f := range files {
		idx[f.DocName()] = f
	}
	return idx
}
