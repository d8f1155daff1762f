package stackcfg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/example/kforge/internal/composer"
	"github.com/example/kforge/internal/connector"
	"github.com/example/kforge/internal/injection"
	"github.com/example/kforge/internal/manager"
	"github.com/example/kforge/internal/provider"
)

// BuildProvider constructs the provider a ProviderConfig describes.
func BuildProvider(cfg ProviderConfig) (provider.Provider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("every provider needs a name")
	}
	opts := provider.Options{SecretName: cfg.SecretName, Namespace: cfg.Namespace}
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "opaque":
		return provider.NewOpaque(cfg.Name, opts), nil
	case "basicauth":
		return provider.NewBasicAuth(cfg.Name, opts), nil
	case "tls":
		return provider.NewTLS(cfg.Name, opts), nil
	case "sshauth", "ssh":
		return provider.NewSSHAuth(cfg.Name, opts), nil
	case "dockerconfig", "dockerconfigjson":
		return provider.NewDockerConfig(cfg.Name, opts), nil
	case "custom":
		if cfg.SecretType == "" {
			return nil, fmt.Errorf("provider %q: custom providers need a secretType", cfg.Name)
		}
		return provider.NewCustom(cfg.Name, cfg.SecretType, cfg.RequiredKeys, cfg.OptionalKeys, opts), nil
	default:
		return nil, fmt.Errorf("provider %q has unsupported type %q", cfg.Name, cfg.Type)
	}
}

// BuildManager assembles one stack's manager: its connectors, providers and
// secret declarations, built and ready to prepare. A stack with no connector
// list gets every connector the project declares.
func BuildManager(ctx context.Context, cfg Config, stack StackConfig, baseDir string) (*manager.SecretManager, error) {
	m := manager.New(stack.Name)

	names := stack.Connectors
	if len(names) == 0 {
		for name := range cfg.Connectors {
			names = append(names, name)
		}
	}
	for _, name := range names {
		cCfg, ok := cfg.Connectors[name]
		if !ok {
			return nil, fmt.Errorf("stack %q references unknown connector %q", stack.Name, name)
		}
		c, err := connector.FromConfig(ctx, name, cCfg, baseDir)
		if err != nil {
			return nil, err
		}
		if err := m.AddConnector(name, c); err != nil {
			return nil, err
		}
	}

	for _, pCfg := range stack.Providers {
		p, err := BuildProvider(pCfg)
		if err != nil {
			return nil, fmt.Errorf("stack %q: %w", stack.Name, err)
		}
		if err := m.AddProvider(p); err != nil {
			return nil, err
		}
	}

	if stack.DefaultConnector != "" {
		if err := m.SetDefaultConnector(stack.DefaultConnector); err != nil {
			return nil, fmt.Errorf("stack %q: %w", stack.Name, err)
		}
	}
	if stack.DefaultProvider != "" {
		if err := m.SetDefaultProvider(stack.DefaultProvider); err != nil {
			return nil, fmt.Errorf("stack %q: %w", stack.Name, err)
		}
	}

	for _, sCfg := range stack.Secrets {
		opts := manager.SecretOptions{Name: sCfg.Name, Connector: sCfg.Connector, Provider: sCfg.Provider}
		if err := m.AddSecret(opts); err != nil {
			return nil, fmt.Errorf("stack %q: %w", stack.Name, err)
		}
	}

	if err := m.Build(); err != nil {
		return nil, fmt.Errorf("stack %q: %w", stack.Name, err)
	}
	return m, nil
}

// AddResources registers a stack's resources and overrides on a composer.
// File-backed templates resolve relative to baseDir.
func AddResources(c *composer.Composer, stack StackConfig, baseDir string) error {
	for _, res := range stack.Resources {
		doc := res.Template
		if res.File != "" {
			loaded, err := loadManifest(res.File, baseDir)
			if err != nil {
				return fmt.Errorf("stack %q resource %q: %w", stack.Name, res.Name, err)
			}
			doc = loaded
		}
		kind, err := parseEntryKind(res.Kind)
		if err != nil {
			return fmt.Errorf("stack %q resource %q: %w", stack.Name, res.Name, err)
		}
		if err := c.Add(res.Name, kind, doc); err != nil {
			return err
		}
		if res.Override != nil {
			if err := c.AddOverride(res.Name, res.Override); err != nil {
				return err
			}
		}
	}
	return nil
}

// Records resolves a stack's configured injections against its manager.
func Records(stack StackConfig, m *manager.SecretManager) ([]injection.Record, error) {
	var records []injection.Record
	for _, inj := range stack.Injections {
		var p provider.Provider
		var err error
		if inj.Provider != "" {
			p, err = m.ProviderByName(inj.Provider)
		} else {
			p, err = m.ResolveProviderFor(inj.Secret)
		}
		if err != nil {
			return nil, fmt.Errorf("stack %q: %w", stack.Name, err)
		}
		req := injection.NewRequest(inj.Secret).
			IntoResource(inj.Resource).
			WithTargetName(inj.TargetName).
			WithStrategy(inj.Strategy.ToStrategy())
		if inj.Path != "" {
			req = req.At(inj.Path)
		}
		rec, err := req.Resolve(p)
		if err != nil {
			return nil, fmt.Errorf("stack %q: %w", stack.Name, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseEntryKind(raw string) (composer.EntryKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "mergeable":
		return composer.KindMergeable, nil
	case "instance":
		return composer.KindInstance, nil
	default:
		return "", fmt.Errorf("unsupported resource kind %q", raw)
	}
}

func loadManifest(path, baseDir string) (map[string]any, error) {
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return doc, nil
}
