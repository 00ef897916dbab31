// Package credentials resolves secret:// references found in deploy target
// settings so passwords can live outside the settings file.
package credentials

// Config lists the named secret providers available to targets.
type Config struct {
	DefaultProvider string                    `yaml:"defaultProvider,omitempty" json:"defaultProvider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty" json:"providers,omitempty"`
}

// ProviderConfig configures one provider. Type is "file" or "vault".
type ProviderConfig struct {
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// file
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// vault
	Address             string `yaml:"address,omitempty" json:"address,omitempty"`
	Token               string `yaml:"token,omitempty" json:"token,omitempty"`
	Namespace           string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Mount               string `yaml:"mount,omitempty" json:"mount,omitempty"`
	KVVersion           int    `yaml:"kvVersion,omitempty" json:"kvVersion,omitempty"`
	Key                 string `yaml:"key,omitempty" json:"key,omitempty"`
	AuthMethod          string `yaml:"authMethod,omitempty" json:"authMethod,omitempty"`
	AuthMount           string `yaml:"authMount,omitempty" json:"authMount,omitempty"`
	RoleID              string `yaml:"roleId,omitempty" json:"roleId,omitempty"`
	SecretID            string `yaml:"secretId,omitempty" json:"secretId,omitempty"`
	KubernetesRole      string `yaml:"kubernetesRole,omitempty" json:"kubernetesRole,omitempty"`
	KubernetesTokenPath string `yaml:"kubernetesTokenPath,omitempty" json:"kubernetesTokenPath,omitempty"`
	AWSRole             string `yaml:"awsRole,omitempty" json:"awsRole,omitempty"`
	AWSRegion           string `yaml:"awsRegion,omitempty" json:"awsRegion,omitempty"`
	AWSHeaderValue      string `yaml:"awsHeaderValue,omitempty" json:"awsHeaderValue,omitempty"`
}

// Empty reports whether no providers are configured.
func (c Config) Empty() bool {
	return c.DefaultProvider == "" && len(c.Providers) == 0
}

// Merge overlays b onto a; providers in b replace same-named providers in a.
func Merge(a, b Config) Config {
	out := a
	if b.DefaultProvider != "" {
		out.DefaultProvider = b.DefaultProvider
	}
	if len(b.Providers) > 0 {
		merged := make(map[string]ProviderConfig, len(a.Providers)+len(b.Providers))
		for name, cfg := range a.Providers {
			merged[name] = cfg
		}
		for name, cfg := range b.Providers {
			merged[name] = cfg
		}
		out.Providers = merged
	}
	return out
}
