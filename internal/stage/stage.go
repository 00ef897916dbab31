// stage.go replaces stale plugin artifacts in the server's plugin directory.
package stage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/example/mcdeploy/internal/artifact"
	"github.com/go-logr/logr"
)

// ErrDestinationMissing is returned when the destination directory does not exist.
var ErrDestinationMissing = errors.New("destination directory does not exist")

// Report describes what a Stage call changed.
type Report struct {
	Removed []string
	Copied  string
}

// Stager copies artifacts into a destination directory.
type Stager struct {
	Log logr.Logger
}

// Stage removes every entry of destDir matching the artifact's stale pattern
// and then copies the artifact in. destDir is never created.
func (s Stager) Stage(a artifact.Descriptor, destDir string) (Report, error) {
	if a.LocalPath == "" {
		return Report{}, fmt.Errorf("artifact %s has no local path", a.FileName())
	}
	info, err := os.Stat(destDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Report{}, fmt.Errorf("%w: %s", ErrDestinationMissing, destDir)
		}
		return Report{}, fmt.Errorf("stat %s: %w", destDir, err)
	}
	if !info.IsDir() {
		return Report{}, fmt.Errorf("%s is not a directory", destDir)
	}

	removed, err := s.removeStale(a, destDir)
	if err != nil {
		return Report{Removed: removed}, err
	}
	dest := filepath.Join(destDir, filepath.Base(a.LocalPath))
	if err := copyFile(a.LocalPath, dest); err != nil {
		return Report{Removed: removed}, err
	}
	s.Log.Info("staged artifact", "file", dest, "removed", len(removed))
	return Report{Removed: removed, Copied: dest}, nil
}

func (s Stager) removeStale(a artifact.Descriptor, destDir string) ([]string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", destDir, err)
	}
	pattern := a.StalePattern()
	var removed []string
	for _, entry := range entries {
		if !pattern.MatchString(entry.Name()) {
			continue
		}
		path := filepath.Join(destDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("remove stale %s: %w", path, err)
		}
		s.Log.V(1).Info("removed stale artifact", "path", path)
		removed = append(removed, entry.Name())
	}
	sort.Strings(removed)
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}
