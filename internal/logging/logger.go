// logger.go builds the logr.Logger shared by mcdeploy commands and packages.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// New returns a zap-backed logger writing to w (stderr when nil) at the given level.
func New(level string, w io.Writer) (logr.Logger, error) {
	lower := strings.ToLower(strings.TrimSpace(level))
	opts := crzap.Options{}
	var zapLevel zapcore.Level
	switch lower {
	case "debug":
		opts.Development = true
		zapLevel = zapcore.DebugLevel
	case "info", "":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return logr.Logger{}, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
	}
	atomic := zap.NewAtomicLevelAt(zapLevel)
	opts.Level = &atomic
	if w != nil {
		opts.DestWriter = w
	}
	return crzap.New(crzap.UseFlagOptions(&opts)), nil
}

// Warn logs msg at zap's warn level. Loggers not backed by zap get an
// info entry tagged with warning=true instead.
func Warn(log logr.Logger, msg string, keysAndValues ...interface{}) {
	if u, ok := log.GetSink().(zapr.Underlier); ok {
		u.GetUnderlying().Sugar().Warnw(msg, keysAndValues...)
		return
	}
	log.Info(msg, append([]interface{}{"warning", true}, keysAndValues...)...)
}
