// Package manager binds declared secret names to the connector that resolves
// them and the provider that materializes them.
package manager

import (
	"context"
	"fmt"

	"github.com/example/kforge/internal/connector"
	"github.com/example/kforge/internal/provider"
)

// SecretOptions declares one secret. Empty Connector/Provider fields fall back
// to the manager's defaults, fixed at Build time.
type SecretOptions struct {
	Name      string
	Connector string
	Provider  string
}

// DuplicateError reports a second registration under one name.
type DuplicateError struct {
	Kind string // "connector", "provider" or "secret"
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Kind, e.Name)
}

// NoDefaultError reports a registry with several entries and no chosen default.
type NoDefaultError struct {
	Kind string
}

func (e *NoDefaultError) Error() string {
	return fmt.Sprintf("several %ss are registered and none is the default; call SetDefault%s", e.Kind, titleKind(e.Kind))
}

func titleKind(kind string) string {
	switch kind {
	case "connector":
		return "Connector"
	case "provider":
		return "Provider"
	}
	return kind
}

// SecretManager is one isolated registry of connectors, providers and secret
// declarations.
type SecretManager struct {
	name       string
	connectors map[string]connector.Connector
	providers  map[string]provider.Provider

	secrets     map[string]SecretOptions
	secretOrder []string

	defaultConnector string
	defaultProvider  string
	built            bool

	// values caches resolved values so each unique name loads at most once
	// per run.
	values map[string]any
}

// New creates an empty manager.
func New(name string) *SecretManager {
	return &SecretManager{
		name:       name,
		connectors: map[string]connector.Connector{},
		providers:  map[string]provider.Provider{},
		secrets:    map[string]SecretOptions{},
		values:     map[string]any{},
	}
}

// Name returns the manager's registered name.
func (m *SecretManager) Name() string { return m.name }

// AddConnector registers a named connector.
func (m *SecretManager) AddConnector(name string, c connector.Connector) error {
	if _, ok := m.connectors[name]; ok {
		return &DuplicateError{Kind: "connector", Name: name}
	}
	m.connectors[name] = c
	return nil
}

// AddProvider registers a named provider.
func (m *SecretManager) AddProvider(p provider.Provider) error {
	name := p.Name()
	if _, ok := m.providers[name]; ok {
		return &DuplicateError{Kind: "provider", Name: name}
	}
	m.providers[name] = p
	return nil
}

// AddSecret declares a secret. The name must be unique within the manager.
func (m *SecretManager) AddSecret(opts SecretOptions) error {
	if opts.Name == "" {
		return fmt.Errorf("secret name is required")
	}
	if _, ok := m.secrets[opts.Name]; ok {
		return &DuplicateError{Kind: "secret", Name: opts.Name}
	}
	m.secrets[opts.Name] = opts
	m.secretOrder = append(m.secretOrder, opts.Name)
	return nil
}

// SetDefaultConnector picks the fallback connector for secrets that do not
// name one.
func (m *SecretManager) SetDefaultConnector(name string) error {
	if _, ok := m.connectors[name]; !ok {
		return fmt.Errorf("connector %q is not registered", name)
	}
	m.defaultConnector = name
	return nil
}

// SetDefaultProvider picks the fallback provider.
func (m *SecretManager) SetDefaultProvider(name string) error {
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("provider %q is not registered", name)
	}
	m.defaultProvider = name
	return nil
}

// Build finalizes the registry: at least one connector, provider and secret
// must be registered, and defaults resolve now. A sole registered connector
// or provider becomes the default implicitly.
func (m *SecretManager) Build() error {
	if len(m.connectors) == 0 {
		return fmt.Errorf("manager %q has no connectors", m.name)
	}
	if len(m.providers) == 0 {
		return fmt.Errorf("manager %q has no providers", m.name)
	}
	if len(m.secrets) == 0 {
		return fmt.Errorf("manager %q declares no secrets", m.name)
	}
	if m.defaultConnector == "" {
		if len(m.connectors) > 1 {
			return &NoDefaultError{Kind: "connector"}
		}
		for name := range m.connectors {
			m.defaultConnector = name
		}
	}
	if m.defaultProvider == "" {
		if len(m.providers) > 1 {
			return &NoDefaultError{Kind: "provider"}
		}
		for name := range m.providers {
			m.defaultProvider = name
		}
	}
	for _, name := range m.secretOrder {
		opts := m.secrets[name]
		if opts.Connector != "" {
			if _, ok := m.connectors[opts.Connector]; !ok {
				return fmt.Errorf("secret %q references unknown connector %q", name, opts.Connector)
			}
		}
		if opts.Provider != "" {
			if _, ok := m.providers[opts.Provider]; !ok {
				return fmt.Errorf("secret %q references unknown provider %q", name, opts.Provider)
			}
		}
	}
	m.built = true
	return nil
}

// Secrets returns the declared secrets in registration order.
func (m *SecretManager) Secrets() []SecretOptions {
	out := make([]SecretOptions, 0, len(m.secretOrder))
	for _, name := range m.secretOrder {
		out = append(out, m.secrets[name])
	}
	return out
}

// ProviderByName returns a registered provider.
func (m *SecretManager) ProviderByName(name string) (provider.Provider, error) {
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not registered in manager %q", name, m.name)
	}
	return p, nil
}

// ResolveConnectorFor returns the connector serving a declared secret.
func (m *SecretManager) ResolveConnectorFor(name string) (connector.Connector, error) {
	opts, ok := m.secrets[name]
	if !ok {
		return nil, fmt.Errorf("secret %q is not declared in manager %q", name, m.name)
	}
	connectorName := opts.Connector
	if connectorName == "" {
		connectorName = m.defaultConnector
	}
	c, ok := m.connectors[connectorName]
	if !ok {
		return nil, fmt.Errorf("secret %q resolves to unknown connector %q", name, connectorName)
	}
	return c, nil
}

// ResolveProviderFor returns the provider serving a declared secret.
func (m *SecretManager) ResolveProviderFor(name string) (provider.Provider, error) {
	opts, ok := m.secrets[name]
	if !ok {
		return nil, fmt.Errorf("secret %q is not declared in manager %q", name, m.name)
	}
	providerName := opts.Provider
	if providerName == "" {
		providerName = m.defaultProvider
	}
	p, ok := m.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("secret %q resolves to unknown provider %q", name, providerName)
	}
	return p, nil
}

// ResolveSecretValueForApply loads and returns one secret's raw value,
// caching it for the rest of the run.
func (m *SecretManager) ResolveSecretValueForApply(ctx context.Context, name string) (any, error) {
	if !m.built {
		return nil, fmt.Errorf("manager %q is not built", m.name)
	}
	if value, ok := m.values[name]; ok {
		return value, nil
	}
	c, err := m.ResolveConnectorFor(name)
	if err != nil {
		return nil, err
	}
	if err := c.Load(ctx, []string{name}); err != nil {
		return nil, err
	}
	value, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	m.values[name] = value
	return value, nil
}

// Prepare resolves every declared secret's value through its connector, then
// asks each secret's provider to materialize effects. Secrets are processed
// in registration order; each unique name resolves at most once per run.
func (m *SecretManager) Prepare(ctx context.Context) ([]provider.PreparedEffect, error) {
	if !m.built {
		return nil, fmt.Errorf("manager %q is not built; call Build first", m.name)
	}
	var effects []provider.PreparedEffect
	for _, name := range m.secretOrder {
		value, err := m.ResolveSecretValueForApply(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("manager %q: resolve secret %q: %w", m.name, name, err)
		}
		p, err := m.ResolveProviderFor(name)
		if err != nil {
			return nil, err
		}
		prepared, err := p.Prepare(name, value)
		if err != nil {
			return nil, fmt.Errorf("manager %q: %w", m.name, err)
		}
		effects = append(effects, prepared...)
	}
	return effects, nil
}

// Validate resolves every declared secret's connector and forces a load and
// a get, surfacing the first failure without preparing any effect.
func (m *SecretManager) Validate(ctx context.Context) error {
	if !m.built {
		return fmt.Errorf("manager %q is not built; call Build first", m.name)
	}
	for _, name := range m.secretOrder {
		c, err := m.ResolveConnectorFor(name)
		if err != nil {
			return err
		}
		if err := c.Load(ctx, []string{name}); err != nil {
			return fmt.Errorf("manager %q: validate secret %q: %w", m.name, name, err)
		}
		if _, err := c.Get(name); err != nil {
			return fmt.Errorf("manager %q: validate secret %q: %w", m.name, name, err)
		}
	}
	return nil
}
