package session

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Manual is used where sessions cannot be controlled; it tells the operator
// what to run instead of attempting anything.
type Manual struct {
	Log logr.Logger
}

func (m Manual) IsRunning(ctx context.Context, name string) bool {
	m.Log.V(1).Info("session state unknown on this platform", "session", name)
	return false
}

func (m Manual) Start(ctx context.Context, name string, launch LaunchSpec) error {
	m.Log.Info("session control is not supported here; start the server manually", "dir", launch.Dir, "command", launch.String())
	return nil
}

func (m Manual) Stop(ctx context.Context, name, stopText string, timeout time.Duration) (StopResult, error) {
	m.Log.Info("session control is not supported here; stop the server manually", "session", name)
	return StopManual, nil
}
