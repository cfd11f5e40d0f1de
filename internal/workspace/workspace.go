package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Manager owns the directory that source checkouts are placed in.
type Manager struct {
	baseDir   string
	dir       string
	ephemeral bool
}

// NewEphemeral creates a manager that allocates a fresh directory under
// baseDir (os.TempDir when empty) on every Create and removes it on Cleanup.
func NewEphemeral(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, ephemeral: true}
}

// NewPersistent creates a manager rooted at dir (the working directory when empty).
// Cleanup never removes it.
func NewPersistent(dir string) *Manager {
	if dir == "" {
		dir = "."
	}
	return &Manager{baseDir: dir, dir: dir}
}

// FromConfig picks the mode from source.ephemeral.
func FromConfig(sc config.SourceConfig) *Manager {
	if sc.Ephemeral {
		return NewEphemeral("")
	}
	return NewPersistent("")
}

// Ephemeral reports whether checkouts are removed after the run.
func (m *Manager) Ephemeral() bool { return m.ephemeral }

// Create prepares the workspace directory and returns its path.
func (m *Manager) Create() (string, error) {
	if !m.ephemeral {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return "", m.fsError("failed to create workspace directory", m.dir, err)
		}
		slog.Debug("Using persistent workspace", logfields.Path(m.dir))
		return m.dir, nil
	}

	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return "", m.fsError("failed to create workspace base directory", m.baseDir, err)
	}
	// MkdirTemp appends a random suffix so runs started within the same second never collide.
	dir, err := os.MkdirTemp(m.baseDir, fmt.Sprintf("docpipe-%s-", time.Now().Format("20060102-150405")))
	if err != nil {
		return "", m.fsError("failed to create ephemeral workspace", m.baseDir, err)
	}
	m.dir = dir
	slog.Info("Created ephemeral workspace", logfields.Path(dir))
	return dir, nil
}

// Path returns the workspace directory, empty for an ephemeral manager before Create.
func (m *Manager) Path() string { return m.dir }

// CheckoutPath is where repositoryURL is cloned: explicit wins, otherwise the
// repository name inside the workspace.
func (m *Manager) CheckoutPath(repositoryURL, explicit string) string {
	if explicit != "" {
		return explicit
	}
	name := config.DefaultTargetPath(repositoryURL)
	if m.dir == "" || m.dir == "." {
		return name
	}
	return filepath.Join(m.dir, name)
}

// Cleanup removes an ephemeral workspace. Persistent workspaces are kept.
func (m *Manager) Cleanup() error {
	if !m.ephemeral || m.dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return m.fsError("failed to remove ephemeral workspace", m.dir, err)
	}
	slog.Info("Removed ephemeral workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

func (m *Manager) fsError(msg, path string, cause error) error {
	return errors.FileSystemError(msg).WithCause(cause).WithContext("path", path).Build()
}
