package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTargetsFailed is returned by callers when at least one target transfer failed.
var ErrTargetsFailed = errors.New("one or more deploy targets failed")

// Status is the outcome of deploying to one target.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result records what happened for one target.
type Result struct {
	Target   string
	Endpoint string
	Status   Status
	// Reason explains a skip, e.g. the missing setting keys.
	Reason   string
	Removed  []string
	Uploaded string
	Err      error
}

// Attempted reports whether a transfer was tried.
func (r Result) Attempted() bool {
	return r.Status != StatusSkipped
}

// Summary renders a one-line description of the outcome.
func (r Result) Summary() string {
	switch r.Status {
	case StatusSkipped:
		return "skipped: " + r.Reason
	case StatusFailed:
		return fmt.Sprintf("failed: %v", r.Err)
	default:
		msg := "uploaded " + r.Uploaded + " to " + r.Endpoint
		if len(r.Removed) > 0 {
			msg += " (removed " + strings.Join(r.Removed, ", ") + ")"
		}
		return msg
	}
}

// Results holds per-target outcomes in processing order.
type Results []Result

// Get returns the result for target.
func (rs Results) Get(target string) (Result, bool) {
	for _, r := range rs {
		if r.Target == target {
			return r, true
		}
	}
	return Result{}, false
}

// Failed lists targets whose transfer failed.
func (rs Results) Failed() []string {
	var out []string
	for _, r := range rs {
		if r.Status == StatusFailed {
			out = append(out, r.Target)
		}
	}
	return out
}

// Err returns ErrTargetsFailed wrapped with the failing target names, or nil.
func (rs Results) Err() error {
	failed := rs.Failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTargetsFailed, strings.Join(failed, ", "))
}
