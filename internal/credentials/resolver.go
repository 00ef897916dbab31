package credentials

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/example/mcdeploy/internal/settings"
)

const refPrefix = "secret://"

// Provider returns the secret stored at a provider-specific path.
type Provider interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// Ref is a parsed secret:// reference.
type Ref struct {
	Provider string
	Path     string
}

func (r Ref) String() string {
	return refPrefix + r.Provider + "/" + r.Path
}

// IsRef reports whether value looks like a secret reference.
func IsRef(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), refPrefix)
}

// ParseRef parses secret://provider/path, secret:///path and secret://path.
// The last two forms use defaultProvider. ok is false when value is not a reference.
func ParseRef(value, defaultProvider string) (ref Ref, ok bool, err error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, refPrefix) {
		return Ref{}, false, nil
	}
	rest := strings.TrimPrefix(value, refPrefix)
	provider, path := "", rest
	switch {
	case strings.HasPrefix(rest, "/"):
		path = strings.TrimPrefix(rest, "/")
	case strings.Contains(rest, "/"):
		parts := strings.SplitN(rest, "/", 2)
		provider, path = parts[0], parts[1]
	}
	provider = strings.TrimSpace(provider)
	path = strings.TrimSpace(path)
	if provider == "" {
		provider = strings.TrimSpace(defaultProvider)
	}
	if provider == "" {
		return Ref{}, true, fmt.Errorf("secret reference %q names no provider and no default provider is configured", value)
	}
	if path == "" {
		return Ref{}, true, fmt.Errorf("secret reference %q is missing a path", value)
	}
	return Ref{Provider: provider, Path: path}, true, nil
}

// Resolver resolves references through configured providers, caching values
// for the lifetime of one invocation.
type Resolver struct {
	providers       map[string]Provider
	defaultProvider string
	cache           map[Ref]string
}

// NewResolver builds providers from cfg. Relative file provider paths are
// resolved against baseDir.
func NewResolver(cfg Config, baseDir string) (*Resolver, error) {
	providers := make(map[string]Provider, len(cfg.Providers))
	for name, pcfg := range cfg.Providers {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("secret provider name cannot be empty")
		}
		var (
			p   Provider
			err error
		)
		switch strings.ToLower(strings.TrimSpace(pcfg.Type)) {
		case "file":
			p, err = newFileProvider(pcfg.Path, baseDir)
		case "vault":
			p, err = newVaultProvider(pcfg)
		case "":
			err = fmt.Errorf("missing type")
		default:
			err = fmt.Errorf("unsupported type %q", pcfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("secret provider %q: %w", name, err)
		}
		providers[name] = p
	}
	return &Resolver{
		providers:       providers,
		defaultProvider: strings.TrimSpace(cfg.DefaultProvider),
		cache:           map[Ref]string{},
	}, nil
}

// ProviderNames lists configured providers in sorted order.
func (r *Resolver) ProviderNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveString returns value unchanged unless it is a secret reference.
func (r *Resolver) ResolveString(ctx context.Context, value string) (string, error) {
	defaultProvider := ""
	if r != nil {
		defaultProvider = r.defaultProvider
	}
	ref, ok, err := ParseRef(value, defaultProvider)
	if !ok {
		return value, nil
	}
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("%s: no secret providers are configured", ref)
	}
	if cached, ok := r.cache[ref]; ok {
		return cached, nil
	}
	p := r.providers[ref.Provider]
	if p == nil {
		return "", fmt.Errorf("%s: secret provider %q is not configured", ref, ref.Provider)
	}
	val, err := p.Resolve(ctx, ref.Path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ref, err)
	}
	r.cache[ref] = val
	return val, nil
}

// ResolveTarget returns t with its user and secret resolved.
func (r *Resolver) ResolveTarget(ctx context.Context, t settings.Target) (settings.Target, error) {
	user, err := r.ResolveString(ctx, t.User)
	if err != nil {
		return t, fmt.Errorf("%s %s: %w", t.Name, settings.KeyUser, err)
	}
	secret, err := r.ResolveString(ctx, t.Secret)
	if err != nil {
		return t, fmt.Errorf("%s %s: %w", t.Name, settings.KeyPass, err)
	}
	t.User = user
	t.Secret = secret
	return t, nil
}
