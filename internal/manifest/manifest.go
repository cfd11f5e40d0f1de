// Package manifest records content fingerprints of documentation sources so
// that later runs can tell which sources changed.
package manifest

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/docpipe/internal/docs"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// FileName is the manifest written into the output directory.
const FileName = ".docpipe-manifest.json"

const formatVersion = 1

// Entry describes one documentation source.
type Entry struct {
	Page        string `json:"page"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
}

// Manifest maps source paths (relative to the docs root) to their entries.
type Manifest struct {
	Version     int              `json:"version"`
	BuildID     string           `json:"build_id,omitempty"`
	Generator   string           `json:"generator,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
	Entries     map[string]Entry `json:"entries"`
}

// Fingerprint hashes a source. The path takes part so that a rename is a change.
func Fingerprint(relPath string, content []byte) string {
	return mdfp.CalculateFingerprintFromParts("source: "+relPath, string(content))
}

// Build fingerprints every source under docsDir.
func Build(docsDir string, opts docs.Options) (*Manifest, error) {
	files, err := docs.Discover(docsDir, opts)
	if err != nil {
		return nil, err
	}
	m := &Manifest{Version: formatVersion, GeneratedAt: time.Now().UTC(), Entries: make(map[string]Entry, len(files))}
	for i := range files {
		f := &files[i]
		if err := f.LoadContent(); err != nil {
			return nil, err
		}
		m.Entries[f.RelativePath] = Entry{
			Page:        f.HTMLPath(),
			Fingerprint: Fingerprint(f.RelativePath, f.Content),
			Size:        int64(len(f.Content)),
		}
	}
	return m, nil
}

// Sources returns the source paths in lexical order.
func (m *Manifest) Sources() []string {
	if m == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(m.Entries))
}

// Load reads the manifest from outputDir. A missing manifest yields nil without error.
func Load(outputDir string) (*Manifest, error) {
	p := filepath.Join(outputDir, FileName)
	data, err := os.ReadFile(p) // #nosec G304 -- fixed file name below the output directory
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read manifest").WithContext("path", p).Build()
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "corrupt manifest").WithContext("path", p).Build()
	}
	if m.Version != formatVersion {
		return nil, errors.ValidationError(fmt.Sprintf("unsupported manifest version %d", m.Version)).WithContext("path", p).Build()
	}
	if m.Entries == nil {
		m.Entries = map[string]Entry{}
	}
	return &m, nil
}

// Save writes the manifest into outputDir, replacing any previous one.
func (m *Manifest) Save(outputDir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to encode manifest").Build()
	}
	p := filepath.Join(outputDir, FileName)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write manifest").WithContext("path", p).Build()
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write manifest").WithContext("path", p).Build()
	}
	return nil
}

// Changes lists sources that differ between two manifests.
type Changes struct {
	Added   []string
	Changed []string
	Removed []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// Count is the number of affected sources.
func (c Changes) Count() int { return len(c.Added) + len(c.Changed) + len(c.Removed) }

// Diff compares prev (which may be nil) with next.
func Diff(prev, next *Manifest) Changes {
	var c Changes
	var prevEntries map[string]Entry
	if prev != nil {
		prevEntries = prev.Entries
	}
	for _, src := range next.Sources() {
		old, ok := prevEntries[src]
		switch {
		case !ok:
			c.Added = append(c.Added, src)
		case old.Fingerprint != next.Entries[src].Fingerprint:
			c.Changed = append(c.Changed, src)
		}
	}
	for _, src := range prev.Sources() {
		if _, ok := next.Entries[src]; !ok {
			c.Removed = append(c.Removed, src)
		}
	}
	return c
}
