// Package release creates and publishes the version tag that starts the CI release pipeline.
package release

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// ErrTagExists is returned when the release tag already exists.
var ErrTagExists = errors.New("release tag already exists")

// DefaultPrefix and DefaultRemote match the tags CI listens for.
const (
	DefaultPrefix = "v"
	DefaultRemote = "origin"
)

// Repo is the version-control surface the trigger needs.
type Repo interface {
	TagExists(ctx context.Context, name string) (bool, error)
	CreateTag(ctx context.Context, name string) error
	PushTag(ctx context.Context, remote, name string) error
}

// Trigger tags a version and pushes the tag.
type Trigger struct {
	Repo   Repo
	Prefix string
	Remote string
	Log    logr.Logger
}

// TagName returns the tag used for version.
func (t Trigger) TagName(version string) string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + version
}

func (t Trigger) remote() string {
	if strings.TrimSpace(t.Remote) == "" {
		return DefaultRemote
	}
	return t.Remote
}

// Tag creates the release tag for version. An existing tag is an error.
func (t Trigger) Tag(ctx context.Context, version string) error {
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("version is required")
	}
	name := t.TagName(version)
	exists, err := t.Repo.TagExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check tag %s: %w", name, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTagExists, name)
	}
	if err := t.Repo.CreateTag(ctx, name); err != nil {
		return fmt.Errorf("create tag %s: %w", name, err)
	}
	t.Log.Info("created release tag", "tag", name)
	return nil
}

// Push publishes the release tag for version to the remote.
func (t Trigger) Push(ctx context.Context, version string) error {
	name := t.TagName(version)
	if err := t.Repo.PushTag(ctx, t.remote(), name); err != nil {
		return fmt.Errorf("push tag %s to %s: %w", name, t.remote(), err)
	}
	t.Log.Info("pushed release tag", "tag", name, "remote", t.remote())
	return nil
}

// Run tags then pushes. Push is not attempted when tagging fails.
func (t Trigger) Run(ctx context.Context, version string) error {
	if err := t.Tag(ctx, version); err != nil {
		return err
	}
	return t.Push(ctx, version)
}
