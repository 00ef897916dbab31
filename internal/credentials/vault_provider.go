package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"

	vault "github.com/hashicorp/vault/api"
)

type vaultProvider struct {
	client    *vault.Client
	mount     string
	kvVersion int
	key       string
	auth      vaultAuth

	loginOnce sync.Once
	loginErr  error
}

func newVaultProvider(cfg ProviderConfig) (*vaultProvider, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, fmt.Errorf("vault address is required")
	}
	auth, err := newVaultAuth(cfg)
	if err != nil {
		return nil, err
	}
	apiCfg := vault.DefaultConfig()
	apiCfg.Address = address
	client, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, err
	}
	if ns := strings.TrimSpace(cfg.Namespace); ns != "" {
		client.SetNamespace(ns)
	}
	if auth.method == authToken {
		client.SetToken(auth.token)
	}
	mount := strings.Trim(strings.TrimSpace(cfg.Mount), "/")
	if mount == "" {
		mount = "secret"
	}
	kv := cfg.KVVersion
	if kv == 0 {
		kv = 2
	}
	if kv != 1 && kv != 2 {
		return nil, fmt.Errorf("vault kvVersion must be 1 or 2")
	}
	return &vaultProvider{
		client:    client,
		mount:     mount,
		kvVersion: kv,
		key:       strings.TrimSpace(cfg.Key),
		auth:      auth,
	}, nil
}

// Resolve reads "path#key". Without a key the provider's default key, then
// "password", then a lone field are tried.
func (p *vaultProvider) Resolve(ctx context.Context, secretPath string) (string, error) {
	path, key := splitKey(secretPath)
	if path == "" {
		return "", fmt.Errorf("vault secret path is required")
	}
	if err := p.login(ctx); err != nil {
		return "", err
	}
	data, err := p.read(ctx, path)
	if err != nil {
		return "", err
	}
	if key == "" {
		key = p.key
	}
	return pickField(data, key)
}

func (p *vaultProvider) login(ctx context.Context) error {
	if p.auth.method == authToken {
		return nil
	}
	p.loginOnce.Do(func() {
		p.loginErr = p.auth.login(ctx, p.client)
	})
	return p.loginErr
}

func (p *vaultProvider) read(ctx context.Context, path string) (map[string]interface{}, error) {
	full := p.mount + "/" + path
	if p.kvVersion == 2 {
		full = p.mount + "/data/" + path
	}
	secret, err := p.client.Logical().ReadWithContext(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("read vault secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault secret %s not found", path)
	}
	if p.kvVersion == 1 {
		return secret.Data, nil
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return nil, fmt.Errorf("vault secret %s has no data (deleted version?)", path)
	}
	return data, nil
}

func splitKey(raw string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(raw), "#", 2)
	path := strings.Trim(strings.TrimSpace(parts[0]), "/")
	if len(parts) == 1 {
		return path, ""
	}
	return path, strings.TrimSpace(parts[1])
}

func pickField(data map[string]interface{}, key string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("secret data is empty")
	}
	for _, candidate := range []string{key, "password"} {
		if candidate == "" {
			continue
		}
		if v, ok := data[candidate]; ok {
			return asString(v)
		}
	}
	if len(data) == 1 {
		for _, v := range data {
			return asString(v)
		}
	}
	if key == "" {
		return "", fmt.Errorf("secret has several fields; add #key to the reference")
	}
	return "", fmt.Errorf("secret key %q not found", key)
}

func asString(v interface{}) (string, error) {
	switch typed := v.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	default:
		return "", fmt.Errorf("secret value must be a string")
	}
}
