// Package outputdir prepares the directory the generator writes into.
package outputdir

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// Ensure creates path (and parents) when absent. Existing contents are never
// touched, so repeated calls are no-ops.
func Ensure(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		slog.Debug("Output directory exists", logfields.Path(path))
		return nil
	case err == nil:
		return unusable("output path exists and is not a directory", path, fmt.Errorf("%s: not a directory", path))
	case !os.IsNotExist(err):
		return unusable("cannot inspect output directory", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil { // #nosec G301 -- published documentation
		return unusable("cannot create output directory", path, err)
	}
	slog.Info("Created output directory", logfields.Path(path))
	return nil
}

// Clean removes everything inside path but keeps the directory itself. A
// missing directory is not an error.
func Clean(path string) error {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return unusable("cannot read output directory", path, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(path, e.Name())); err != nil {
			return unusable("cannot clean output directory", path, err)
		}
	}
	slog.Info("Cleaned output directory", logfields.Path(path), slog.Int("entries", len(entries)))
	return nil
}

func unusable(msg, path string, cause error) error {
	return errors.FileSystemError(msg).
		WithCause(fmt.Errorf("%w: %w", pipeline.ErrOutputDirectory, cause)).
		WithContext("path", path).
		Build()
}
