// builder.go runs the project's build command and finds the artifact it produced.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mattn/go-shellwords"

	"github.com/example/mcdeploy/internal/artifact"
)

// DefaultCommand is the build command used when none is configured.
const DefaultCommand = "./gradlew build"

// Builder runs an external build command.
type Builder struct {
	Argv   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	Log    logr.Logger
}

// ParseCommand splits raw with shell quoting rules. Empty input yields DefaultCommand.
func ParseCommand(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultCommand
	}
	args, err := shellwords.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse build command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("build command must contain at least one argument")
	}
	return args, nil
}

// Build runs the command. A non-zero exit is returned as an error.
func (b Builder) Build(ctx context.Context) error {
	if len(b.Argv) == 0 {
		return errors.New("build command is empty")
	}
	b.Log.Info("building artifact", "command", strings.Join(b.Argv, " "), "dir", b.Dir)
	cmd := exec.CommandContext(ctx, b.Argv[0], b.Argv[1:]...)
	cmd.Dir = b.Dir
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build command %q failed: %w", b.Argv[0], err)
	}
	return nil
}

// Locate returns d pointing at its file inside outputDir. The file must exist.
func Locate(outputDir string, d artifact.Descriptor) (artifact.Descriptor, error) {
	path, err := filepath.Abs(filepath.Join(outputDir, d.FileName()))
	if err != nil {
		return artifact.Descriptor{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return artifact.Descriptor{}, fmt.Errorf("artifact %s not found in %s; run the build first", d.FileName(), outputDir)
		}
		return artifact.Descriptor{}, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return artifact.Descriptor{}, fmt.Errorf("artifact path %s is a directory", path)
	}
	return d.WithPath(path), nil
}
