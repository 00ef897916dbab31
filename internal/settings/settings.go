// Package settings reads the line-oriented FTP settings file into deploy targets.
//
// The file holds `KEY := value` or `KEY = value` lines. A key may carry a
// `<target>.` prefix routing it to that target; unprefixed keys belong to the
// target named DefaultTarget.
package settings

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/go-logr/logr"
)

// DefaultTarget receives keys written without a target prefix.
const DefaultTarget = "default"

// Recognized setting keys.
const (
	KeyUser = "FTP_USER"
	KeyPass = "FTP_PASS"
	KeyHost = "FTP_HOST"
	KeyPath = "FTP_PATH"
)

// Target is one named remote destination.
type Target struct {
	Name       string
	User       string
	Secret     string
	Host       string
	RemotePath string
	// Extra keeps unrecognized keys verbatim. They are never interpreted.
	Extra map[string]string
}

// Complete reports whether every credential field is set.
func (t Target) Complete() bool {
	return len(t.Missing()) == 0
}

// Missing lists the setting keys that are empty for t.
func (t Target) Missing() []string {
	var out []string
	if strings.TrimSpace(t.User) == "" {
		out = append(out, KeyUser)
	}
	if t.Secret == "" {
		out = append(out, KeyPass)
	}
	if strings.TrimSpace(t.Host) == "" {
		out = append(out, KeyHost)
	}
	if strings.TrimSpace(t.RemotePath) == "" {
		out = append(out, KeyPath)
	}
	return out
}

// TargetSet is an ordered collection of targets keyed by name.
type TargetSet struct {
	order   []string
	targets map[string]*Target
}

// Names returns target names in first-appearance order.
func (s *TargetSet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Len returns the number of targets.
func (s *TargetSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Lookup returns the named target and whether it was configured.
func (s *TargetSet) Lookup(name string) (Target, bool) {
	if s == nil || s.targets == nil {
		return Target{}, false
	}
	t, ok := s.targets[name]
	if !ok {
		return Target{}, false
	}
	return *t, true
}

// Get returns the named target, or an empty (incomplete) target when it is not configured.
func (s *TargetSet) Get(name string) Target {
	if t, ok := s.Lookup(name); ok {
		return t
	}
	return Target{Name: name}
}

// Targets returns every target in order.
func (s *TargetSet) Targets() []Target {
	out := make([]Target, 0, s.Len())
	for _, name := range s.Names() {
		out = append(out, *s.targets[name])
	}
	return out
}

func (s *TargetSet) ensure(name string) *Target {
	if s.targets == nil {
		s.targets = map[string]*Target{}
	}
	if t, ok := s.targets[name]; ok {
		return t
	}
	t := &Target{Name: name}
	s.targets[name] = t
	s.order = append(s.order, name)
	return t
}

// Load reads the settings file at path. A missing file yields an empty set.
func Load(path string, log logr.Logger) (*TargetSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info("settings file not found; deploy targets are unavailable", "path", path)
			return &TargetSet{}, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	set, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	log.V(1).Info("loaded settings", "path", path, "targets", set.Names())
	return set, nil
}

// MaxLineLength bounds a settings line. Longer lines are skipped.
const MaxLineLength = 64 * 1024

// Parse reads settings lines from r. Lines without an assignment operator,
// and lines longer than MaxLineLength, are skipped.
func Parse(r io.Reader) (*TargetSet, error) {
	set := &TargetSet{}
	reader := bufio.NewReader(r)
	for {
		raw, overlong, err := readLine(reader)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if !overlong {
			parseLine(set, raw)
		}
		if err != nil {
			return set, nil
		}
	}
}

func parseLine(set *TargetSet, raw string) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	key, value, ok := splitAssignment(line)
	if !ok || key == "" {
		return
	}
	name, field := DefaultTarget, key
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		name, field = strings.TrimSpace(key[:idx]), strings.TrimSpace(key[idx+1:])
		if name == "" || field == "" {
			return
		}
	}
	assign(set.ensure(name), field, value)
}

// readLine returns the next line of br without its terminator. When the line
// exceeds MaxLineLength the rest of it is drained and overlong is true.
func readLine(br *bufio.Reader) (line string, overlong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, rerr := br.ReadLine()
		if rerr != nil {
			return string(buf), overlong, rerr
		}
		if !overlong {
			if len(buf)+len(chunk) > MaxLineLength {
				overlong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return string(buf), overlong, nil
		}
	}
}

func splitAssignment(line string) (string, string, bool) {
	colon := strings.Index(line, ":=")
	eq := strings.Index(line, "=")
	var key, value string
	switch {
	case colon >= 0 && colon < eq:
		key, value = line[:colon], line[colon+2:]
	case eq >= 0:
		key, value = line[:eq], line[eq+1:]
	default:
		return "", "", false
	}
	return strings.TrimSpace(key), unquote(strings.TrimSpace(value)), true
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func assign(t *Target, field, value string) {
	switch field {
	case KeyUser:
		t.User = value
	case KeyPass:
		t.Secret = value
	case KeyHost:
		t.Host = value
	case KeyPath:
		t.RemotePath = value
	default:
		if t.Extra == nil {
			t.Extra = map[string]string{}
		}
		t.Extra[field] = value
	}
}

// ExtraKeys returns the unrecognized keys of t in sorted order.
func (t Target) ExtraKeys() []string {
	keys := make([]string, 0, len(t.Extra))
	for k := range t.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
