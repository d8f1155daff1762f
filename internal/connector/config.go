package connector

import (
	"context"
	"fmt"
	"strings"
)

// Config describes one named connector in project configuration.
type Config struct {
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// env
	EnvPrefix string `yaml:"envPrefix,omitempty" json:"envPrefix,omitempty"`

	// file
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// literal
	Values map[string]any `yaml:"values,omitempty" json:"values,omitempty"`

	Vault      *VaultConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
	AWS        *AWSConfig   `yaml:"aws,omitempty" json:"aws,omitempty"`
	GCP        *GCPConfig   `yaml:"gcp,omitempty" json:"gcp,omitempty"`
	OnePassword *OPConfig   `yaml:"onePassword,omitempty" json:"onePassword,omitempty"`
}

// FromConfig builds a connector from one config entry. baseDir anchors
// relative file paths.
func FromConfig(ctx context.Context, name string, cfg Config, baseDir string) (Connector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "env":
		return NewEnvConnector(cfg.EnvPrefix), nil
	case "file":
		c, err := NewFileConnector(cfg.Path, baseDir)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", name, err)
		}
		return c, nil
	case "literal":
		return NewInMemConnector(cfg.Values), nil
	case "vault":
		if cfg.Vault == nil {
			return nil, fmt.Errorf("connector %q: vault settings are required", name)
		}
		c, err := NewVaultConnector(*cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", name, err)
		}
		return c, nil
	case "awssecretsmanager", "aws":
		var awsCfg AWSConfig
		if cfg.AWS != nil {
			awsCfg = *cfg.AWS
		}
		c, err := NewAWSConnector(ctx, awsCfg)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", name, err)
		}
		return c, nil
	case "gcpsecretmanager", "gcp":
		if cfg.GCP == nil {
			return nil, fmt.Errorf("connector %q: gcp settings are required", name)
		}
		c, err := NewGCPConnector(ctx, *cfg.GCP)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", name, err)
		}
		return c, nil
	case "1password", "onepassword":
		if cfg.OnePassword == nil {
			return nil, fmt.Errorf("connector %q: onePassword settings are required", name)
		}
		c, err := NewOPConnector(ctx, *cfg.OnePassword)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", name, err)
		}
		return c, nil
	case "":
		return nil, fmt.Errorf("connector %q missing type", name)
	default:
		return nil, fmt.Errorf("connector %q has unsupported type %q", name, cfg.Type)
	}
}
