// Package deploy pushes a built artifact to every configured transfer target,
// one target at a time, recording an outcome per target.
package deploy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/example/mcdeploy/internal/artifact"
	"github.com/example/mcdeploy/internal/settings"
	"github.com/example/mcdeploy/internal/transfer"
	"github.com/go-logr/logr"
	"github.com/moby/patternmatcher"
)

// SecretResolver resolves secret references inside a target.
type SecretResolver interface {
	ResolveTarget(ctx context.Context, t settings.Target) (settings.Target, error)
}

// Recorder receives each result as soon as it is known.
type Recorder interface {
	Record(ctx context.Context, a artifact.Descriptor, r Result) error
}

// Pipeline deploys artifacts to targets.
type Pipeline struct {
	Dialer   transfer.Dialer
	Secrets  SecretResolver
	Recorder Recorder
	Log      logr.Logger
}

// DeployAll deploys a to each named target in order. With no names every
// target in set is used. Skips and failures never stop the loop.
func (p *Pipeline) DeployAll(ctx context.Context, a artifact.Descriptor, set *settings.TargetSet, names []string) Results {
	if len(names) == 0 {
		names = set.Names()
	}
	results := make(Results, 0, len(names))
	for _, name := range names {
		res := p.DeployOne(ctx, a, set.Get(name))
		if p.Recorder != nil {
			if err := p.Recorder.Record(ctx, a, res); err != nil {
				p.Log.Error(err, "unable to record deploy result", "target", name)
			}
		}
		results = append(results, res)
	}
	return results
}

// DeployOne validates t and transfers a to it.
func (p *Pipeline) DeployOne(ctx context.Context, a artifact.Descriptor, t settings.Target) Result {
	log := p.Log.WithValues("target", t.Name)
	res := Result{Target: t.Name}
	if missing := t.Missing(); len(missing) > 0 {
		res.Status = StatusSkipped
		res.Reason = "missing " + strings.Join(missing, ", ")
		log.Info("deploy target incomplete; skipping", "missing", missing)
		return res
	}
	if p.Secrets != nil {
		resolved, err := p.Secrets.ResolveTarget(ctx, t)
		if err != nil {
			return fail(log, res, err)
		}
		t = resolved
	}
	ep, err := transfer.ParseEndpoint(t.Host, t.User, t.Secret)
	if err != nil {
		return fail(log, res, fmt.Errorf("%s: %w", settings.KeyHost, err))
	}
	res.Endpoint = ep.String() + t.RemotePath
	removed, err := p.transfer(ctx, log, a, ep, t.RemotePath)
	res.Removed = removed
	if err != nil {
		return fail(log, res, err)
	}
	res.Status = StatusSucceeded
	res.Uploaded = a.FileName()
	log.Info("deployed artifact", "endpoint", res.Endpoint, "file", res.Uploaded)
	return res
}

func (p *Pipeline) transfer(ctx context.Context, log logr.Logger, a artifact.Descriptor, ep transfer.Endpoint, remotePath string) (removed []string, err error) {
	matcher, err := patternmatcher.New([]string{a.RemoteGlob()})
	if err != nil {
		return nil, fmt.Errorf("stale pattern: %w", err)
	}
	local, err := os.Open(a.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer local.Close()

	log.V(1).Info("connecting", "endpoint", ep.String())
	sess, err := p.Dialer.Dial(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := sess.ChangeDir(remotePath); err != nil {
		return nil, err
	}
	names, err := sess.List()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		ok, err := matcher.MatchesOrParentMatches(name)
		if err != nil {
			return removed, fmt.Errorf("match %s: %w", name, err)
		}
		if !ok {
			continue
		}
		if err := sess.Remove(name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	if err := sess.Upload(a.FileName(), local); err != nil {
		return removed, err
	}
	return removed, nil
}

func fail(log logr.Logger, res Result, err error) Result {
	res.Status = StatusFailed
	res.Err = err
	log.Error(err, "deploy failed")
	return res
}
