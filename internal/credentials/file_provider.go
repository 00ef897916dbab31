package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// fileProvider reads secrets from a YAML document; paths walk nested maps.
type fileProvider struct {
	path string
	data map[string]interface{}
}

func newFileProvider(path, baseDir string) (*fileProvider, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("file provider path is required")
	}
	if baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	path = filepath.Clean(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	data := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	return &fileProvider{path: path, data: data}, nil
}

func (p *fileProvider) Resolve(ctx context.Context, secretPath string) (string, error) {
	var current interface{} = p.data
	for _, part := range strings.Split(strings.Trim(secretPath, "/"), "/") {
		if part == "" {
			continue
		}
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("path %q does not resolve to a value in %s", secretPath, p.path)
		}
		current, ok = m[part]
		if !ok {
			return "", fmt.Errorf("path %q not found in %s", secretPath, p.path)
		}
	}
	switch v := current.(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("path %q is empty in %s", secretPath, p.path)
	case map[string]interface{}:
		return "", fmt.Errorf("path %q resolves to a map in %s", secretPath, p.path)
	default:
		return fmt.Sprint(v), nil
	}
}
