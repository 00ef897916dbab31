// gitinfo.go runs git with explicit argument lists to read repository state
// and to manage release tags.
package gitinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Git runs git commands in Dir.
type Git struct {
	Dir string
	// Run executes git; tests substitute it. Defaults to os/exec.
	Run func(ctx context.Context, dir string, args ...string) (string, error)
}

func (g Git) run(ctx context.Context, args ...string) (string, error) {
	if g.Run != nil {
		return g.Run(ctx, g.Dir, args...)
	}
	return execGit(ctx, g.Dir, args...)
}

func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.String(), fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
		return stdout.String(), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, msg)
	}
	return stdout.String(), nil
}

// Head returns the current commit hash and whether the work tree is dirty.
func (g Git) Head(ctx context.Context) (commit string, dirty bool, err error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", false, err
	}
	commit = strings.TrimSpace(out)
	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return commit, false, fmt.Errorf("git status: %w", err)
	}
	return commit, strings.TrimSpace(status) != "", nil
}

// TagExists reports whether refs/tags/<name> exists locally.
func (g Git) TagExists(ctx context.Context, name string) (bool, error) {
	_, err := g.run(ctx, "rev-parse", "-q", "--verify", "refs/tags/"+name)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// CreateTag creates a lightweight tag at HEAD.
func (g Git) CreateTag(ctx context.Context, name string) error {
	_, err := g.run(ctx, "tag", name)
	return err
}

// PushTag publishes refs/tags/<name> to remote.
func (g Git) PushTag(ctx context.Context, remote, name string) error {
	_, err := g.run(ctx, "push", remote, "refs/tags/"+name)
	return err
}
