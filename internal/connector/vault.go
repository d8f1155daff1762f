package connector

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig configures a HashiCorp Vault connector.
type VaultConfig struct {
	Address   string `yaml:"address,omitempty" json:"address,omitempty"`
	Token     string `yaml:"token,omitempty" json:"token,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Mount     string `yaml:"mount,omitempty" json:"mount,omitempty"`
	KVVersion int    `yaml:"kvVersion,omitempty" json:"kvVersion,omitempty"`
	// PathPrefix is prepended to every secret name when reading.
	PathPrefix string `yaml:"pathPrefix,omitempty" json:"pathPrefix,omitempty"`
}

// VaultConnector reads secrets from a Vault KV mount. Each secret name maps to
// one KV path; the secret's data map becomes the value.
type VaultConnector struct {
	client     *vault.Client
	mount      string
	kvVersion  int
	pathPrefix string
	loaded     loadedSet
}

// NewVaultConnector builds a Vault-backed connector using token auth.
func NewVaultConnector(cfg VaultConfig) (*VaultConnector, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, fmt.Errorf("vault address is required")
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
	if token := strings.TrimSpace(cfg.Token); token != "" {
		client.SetToken(token)
	}
	mount := strings.Trim(strings.TrimSpace(cfg.Mount), "/")
	if mount == "" {
		mount = "secret"
	}
	kvVersion := cfg.KVVersion
	if kvVersion == 0 {
		kvVersion = 2
	}
	if kvVersion != 1 && kvVersion != 2 {
		return nil, fmt.Errorf("vault kvVersion must be 1 or 2")
	}
	return &VaultConnector{
		client:     client,
		mount:      mount,
		kvVersion:  kvVersion,
		pathPrefix: strings.Trim(strings.TrimSpace(cfg.PathPrefix), "/"),
	}, nil
}

// Load reads each name from the KV mount.
func (c *VaultConnector) Load(ctx context.Context, names []string) error {
	for _, name := range names {
		data, err := c.read(ctx, c.secretPath(name))
		if err != nil {
			return fmt.Errorf("vault secret %q: %w", name, err)
		}
		c.loaded.put(name, flattenVaultData(data))
	}
	return nil
}

// Get returns a loaded Vault value.
func (c *VaultConnector) Get(name string) (any, error) {
	return c.loaded.get(name)
}

func (c *VaultConnector) secretPath(name string) string {
	if c.pathPrefix == "" {
		return name
	}
	return c.pathPrefix + "/" + name
}

func (c *VaultConnector) read(ctx context.Context, path string) (map[string]any, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, fmt.Errorf("secret path is required")
	}
	switch c.kvVersion {
	case 1:
		secret, err := c.client.Logical().ReadWithContext(ctx, fmt.Sprintf("%s/%s", c.mount, path))
		if err != nil {
			return nil, err
		}
		if secret == nil || secret.Data == nil {
			return nil, fmt.Errorf("not found")
		}
		return secret.Data, nil
	default:
		secret, err := c.client.KVv2(c.mount).Get(ctx, path)
		if err != nil {
			return nil, err
		}
		if secret == nil || secret.Data == nil {
			return nil, fmt.Errorf("not found")
		}
		return secret.Data, nil
	}
}

// flattenVaultData collapses a single-key {"value": x} map to the scalar so a
// plain secret reads as a string value.
func flattenVaultData(data map[string]any) any {
	if len(data) == 1 {
		if v, ok := data["value"]; ok {
			return v
		}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
