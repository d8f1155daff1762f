package manager

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/kforge/internal/connector"
	"github.com/example/kforge/internal/provider"
)

func newBuiltManager(t *testing.T, values map[string]any, secrets ...SecretOptions) *SecretManager {
	t.Helper()
	m := New("test")
	if err := m.AddConnector("literal", connector.NewInMemConnector(values)); err != nil {
		t.Fatalf("add connector: %v", err)
	}
	if err := m.AddProvider(provider.NewOpaque("app", provider.Options{SecretName: "app-secrets"})); err != nil {
		t.Fatalf("add provider: %v", err)
	}
	for _, s := range secrets {
		if err := m.AddSecret(s); err != nil {
			t.Fatalf("add secret %s: %v", s.Name, err)
		}
	}
	if err := m.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	return m
}

func TestDuplicateRegistrations(t *testing.T) {
	m := New("test")
	if err := m.AddConnector("literal", connector.NewInMemConnector(nil)); err != nil {
		t.Fatalf("add connector: %v", err)
	}
	err := m.AddConnector("literal", connector.NewInMemConnector(nil))
	var dupErr *DuplicateError
	if !errors.As(err, &dupErr) || dupErr.Name != "literal" {
		t.Fatalf("expected DuplicateError for connector, got %v", err)
	}

	if err := m.AddProvider(provider.NewOpaque("app", provider.Options{})); err != nil {
		t.Fatalf("add provider: %v", err)
	}
	if err := m.AddProvider(provider.NewOpaque("app", provider.Options{})); !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateError for provider, got %v", err)
	}

	if err := m.AddSecret(SecretOptions{Name: "token"}); err != nil {
		t.Fatalf("add secret: %v", err)
	}
	if err := m.AddSecret(SecretOptions{Name: "token"}); !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateError for secret, got %v", err)
	}
}

func TestBuildRequiresRegistrations(t *testing.T) {
	m := New("empty")
	if err := m.Build(); err == nil || !strings.Contains(err.Error(), "connector") {
		t.Fatalf("expected missing-connector error, got %v", err)
	}
	if err := m.AddConnector("literal", connector.NewInMemConnector(nil)); err != nil {
		t.Fatalf("add connector: %v", err)
	}
	if err := m.Build(); err == nil || !strings.Contains(err.Error(), "provider") {
		t.Fatalf("expected missing-provider error, got %v", err)
	}
	if err := m.AddProvider(provider.NewOpaque("app", provider.Options{})); err != nil {
		t.Fatalf("add provider: %v", err)
	}
	if err := m.Build(); err == nil || !strings.Contains(err.Error(), "secret") {
		t.Fatalf("expected missing-secret error, got %v", err)
	}
}

func TestBuildAutoSelectsSoleDefaults(t *testing.T) {
	m := newBuiltManager(t, map[string]any{"token": "abc"}, SecretOptions{Name: "token"})
	c, err := m.ResolveConnectorFor("token")
	if err != nil || c == nil {
		t.Fatalf("expected sole connector as default, got %v", err)
	}
	p, err := m.ResolveProviderFor("token")
	if err != nil || p.Name() != "app" {
		t.Fatalf("expected sole provider as default, got %v (err %v)", p, err)
	}
}

func TestBuildNoDefaultWithSeveral(t *testing.T) {
	m := New("test")
	_ = m.AddConnector("a", connector.NewInMemConnector(nil))
	_ = m.AddConnector("b", connector.NewInMemConnector(nil))
	_ = m.AddProvider(provider.NewOpaque("app", provider.Options{}))
	_ = m.AddSecret(SecretOptions{Name: "token"})
	err := m.Build()
	var ndErr *NoDefaultError
	if !errors.As(err, &ndErr) || ndErr.Kind != "connector" {
		t.Fatalf("expected NoDefaultError for connector, got %v", err)
	}
	if err := m.SetDefaultConnector("a"); err != nil {
		t.Fatalf("set default connector: %v", err)
	}
	if err := m.Build(); err != nil {
		t.Fatalf("build after choosing default: %v", err)
	}
}

func TestBuildRejectsUnknownReferences(t *testing.T) {
	m := New("test")
	_ = m.AddConnector("literal", connector.NewInMemConnector(nil))
	_ = m.AddProvider(provider.NewOpaque("app", provider.Options{}))
	_ = m.AddSecret(SecretOptions{Name: "token", Connector: "ghost"})
	if err := m.Build(); err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected unknown-connector error, got %v", err)
	}
}

func TestPrepareProducesEffectsInOrder(t *testing.T) {
	m := newBuiltManager(t,
		map[string]any{"db-password": "pw", "api-token": "tok"},
		SecretOptions{Name: "db-password"},
		SecretOptions{Name: "api-token"},
	)
	effects, err := m.Prepare(context.Background())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(effects) != 2 {
		t.Fatalf("expected 2 effects, got %d", len(effects))
	}
	if effects[0].SecretName != "db-password" || effects[1].SecretName != "api-token" {
		t.Fatalf("expected registration order, got %q then %q", effects[0].SecretName, effects[1].SecretName)
	}
}

type countingConnector struct {
	inner *connector.InMemConnector
	loads int
}

func (c *countingConnector) Load(ctx context.Context, names []string) error {
	c.loads++
	return c.inner.Load(ctx, names)
}

func (c *countingConnector) Get(name string) (any, error) { return c.inner.Get(name) }

func TestResolveValueCachedPerRun(t *testing.T) {
	counting := &countingConnector{inner: connector.NewInMemConnector(map[string]any{"token": "abc"})}
	m := New("test")
	_ = m.AddConnector("counting", counting)
	_ = m.AddProvider(provider.NewOpaque("app", provider.Options{}))
	_ = m.AddSecret(SecretOptions{Name: "token"})
	if err := m.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := m.ResolveSecretValueForApply(context.Background(), "token"); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if counting.loads != 1 {
		t.Fatalf("expected a single load, got %d", counting.loads)
	}
}

func TestValidateSurfacesConnectorFailure(t *testing.T) {
	m := newBuiltManager(t, map[string]any{"present": "x"},
		SecretOptions{Name: "present"},
		SecretOptions{Name: "absent"},
	)
	err := m.Validate(context.Background())
	if err == nil || !strings.Contains(err.Error(), "absent") {
		t.Fatalf("expected validation error naming the secret, got %v", err)
	}
}
