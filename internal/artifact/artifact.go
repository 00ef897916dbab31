// artifact.go models the plugin artifact handed over by the build step and the
// naming rules used to find stale copies of it.
package artifact

import (
	"fmt"
	"regexp"
	"strings"
)

// Version is the pair of version components that make up an artifact version.
type Version struct {
	MC     string
	Plugin string
}

// String renders the artifact version, e.g. "1.21.4-1.0.5".
func (v Version) String() string {
	switch {
	case v.MC == "":
		return v.Plugin
	case v.Plugin == "":
		return v.MC
	}
	return v.MC + "-" + v.Plugin
}

// Validate reports whether both components are present.
func (v Version) Validate() error {
	if strings.TrimSpace(v.MC) == "" {
		return fmt.Errorf("mc version is required")
	}
	if strings.TrimSpace(v.Plugin) == "" {
		return fmt.Errorf("plugin version is required")
	}
	return nil
}

// Descriptor identifies one built artifact for the duration of an invocation.
type Descriptor struct {
	// LocalPath is the absolute path of the built file. Empty until located.
	LocalPath string
	// BaseName is the stable file-name prefix, e.g. "mc-remote".
	BaseName string
	// LegacyName is the older capitalized plugin name, e.g. "McRemote".
	LegacyName string
	Version    Version
	Extension  string
}

// New returns a descriptor for base/legacy names and a version. The extension defaults to jar.
func New(baseName, legacyName string, version Version, extension string) (Descriptor, error) {
	baseName = strings.TrimSpace(baseName)
	if baseName == "" {
		return Descriptor{}, fmt.Errorf("artifact base name is required")
	}
	if err := version.Validate(); err != nil {
		return Descriptor{}, err
	}
	extension = strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if extension == "" {
		extension = "jar"
	}
	return Descriptor{
		BaseName:   baseName,
		LegacyName: strings.TrimSpace(legacyName),
		Version:    version,
		Extension:  extension,
	}, nil
}

// FileName is <base>-<mc>-<plugin>.<ext>.
func (d Descriptor) FileName() string {
	return fmt.Sprintf("%s-%s.%s", d.BaseName, d.Version, d.Extension)
}

// WithPath returns a copy of d pointing at path.
func (d Descriptor) WithPath(path string) Descriptor {
	d.LocalPath = path
	return d
}

// StalePattern matches local directory entries left behind by earlier builds:
// the legacy capitalized name (any suffix, including plugin data directories)
// and the canonical dashed file name. Matching ignores case.
func (d Descriptor) StalePattern() *regexp.Regexp {
	alts := []string{regexp.QuoteMeta(d.BaseName) + `.*\.` + regexp.QuoteMeta(d.Extension)}
	if d.LegacyName != "" {
		alts = append([]string{regexp.QuoteMeta(d.LegacyName) + `.*`}, alts...)
	}
	return regexp.MustCompile(`^(?i:` + strings.Join(alts, "|") + `)$`)
}

// RemoteGlob is the glob used to remove earlier uploads from a remote directory.
func (d Descriptor) RemoteGlob() string {
	return d.BaseName + "*." + d.Extension
}
