package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/docs"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

var opts = docs.Options{Suffixes: []string{".rst", ".md"}}

func TestBuildFingerprintsSources(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "index.rst", "Nengo\n=====\n")
	writeFile(t, src, "guide/a.md", "# A\n")
	writeFile(t, src, "conf.py", "")

	m, err := Build(src, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"guide/a.md", "index.rst"}, m.Sources())
	assert.Equal(t, "guide/a.html", m.Entries["guide/a.md"].Page)
	assert.Equal(t, int64(12), m.Entries["index.rst"].Size)
	assert.NotEmpty(t, m.Entries["index.rst"].Fingerprint)
	assert.Equal(t, Fingerprint("index.rst", []byte("Nengo\n=====\n")), m.Entries["index.rst"].Fingerprint)
}

func TestFingerprintDependsOnPathAndContent(t *testing.T) {
	base := Fingerprint("a.rst", []byte("x"))
	assert.Equal(t, base, Fingerprint("a.rst", []byte("x")))
	assert.NotEqual(t, base, Fingerprint("b.rst", []byte("x")))
	assert.NotEqual(t, base, Fingerprint("a.rst", []byte("y")))
}

func TestSaveAndLoad(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeFile(t, src, "index.rst", "Nengo\n=====\n")
	m, err := Build(src, opts)
	require.NoError(t, err)
	m.BuildID = "b-1"
	require.NoError(t, m.Save(out))

	loaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, "b-1", loaded.BuildID)
	assert.Equal(t, m.Entries, loaded.Entries)
	assert.NoFileExists(t, filepath.Join(out, FileName+".tmp"))
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	out := t.TempDir()
	m, err := Load(out)
	require.NoError(t, err)
	assert.Nil(t, m)

	writeFile(t, out, FileName, "{not json")
	_, err = Load(out)
	assert.Error(t, err)

	writeFile(t, out, FileName, `{"version": 99}`)
	_, err = Load(out)
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	prev := &Manifest{Entries: map[string]Entry{
		"index.rst":   {Fingerprint: "1"},
		"changed.rst": {Fingerprint: "2"},
		"removed.rst": {Fingerprint: "3"},
	}}
	next := &Manifest{Entries: map[string]Entry{
		"index.rst":   {Fingerprint: "1"},
		"changed.rst": {Fingerprint: "2b"},
		"added.rst":   {Fingerprint: "4"},
	}}
	c := Diff(prev, next)
	assert.Equal(t, []string{"added.rst"}, c.Added)
	assert.Equal(t, []string{"changed.rst"}, c.Changed)
	assert.Equal(t, []string{"removed.rst"}, c.Removed)
	assert.Equal(t, 3, c.Count())
	assert.False(t, c.Empty())

	assert.True(t, Diff(next, next).Empty())
	assert.Equal(t, []string{"added.rst", "changed.rst", "index.rst"}, Diff(nil, next).Added)
}
