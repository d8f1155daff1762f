package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr"

	"github.com/example/kforge/internal/connector"
	"github.com/example/kforge/internal/manager"
	"github.com/example/kforge/internal/provider"
)

func buildManager(t *testing.T, name string, values map[string]any, p provider.Provider, secrets ...string) *manager.SecretManager {
	t.Helper()
	m := manager.New(name)
	if err := m.AddConnector("literal", connector.NewInMemConnector(values)); err != nil {
		t.Fatalf("add connector: %v", err)
	}
	if err := m.AddProvider(p); err != nil {
		t.Fatalf("add provider: %v", err)
	}
	for _, s := range secrets {
		if err := m.AddSecret(manager.SecretOptions{Name: s}); err != nil {
			t.Fatalf("add secret: %v", err)
		}
	}
	if err := m.Build(); err != nil {
		t.Fatalf("build manager %s: %v", name, err)
	}
	return m
}

func TestApplyIntraProviderAutoMerge(t *testing.T) {
	p := provider.NewOpaque("app", provider.Options{SecretName: "app-secrets"})
	m := buildManager(t, "main",
		map[string]any{"db-password": "pw", "api-token": "tok"}, p,
		"db-password", "api-token")

	o := New(ConflictConfig{IntraProvider: StrategyAutoMerge}, logr.Discard())
	o.Register("stack-a", m)
	effects, err := o.Apply(context.Background())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(effects) != 1 {
		t.Fatalf("expected exactly one merged effect, got %d", len(effects))
	}
	data := effects[0].Value["data"].(map[string]any)
	if len(data) != 2 {
		t.Fatalf("expected both keys after auto-merge, got %v", data)
	}
}

func TestApplyCrossManagerErrorTag(t *testing.T) {
	values := map[string]any{"token": "abc"}
	mA := buildManager(t, "alpha",
		values, provider.NewOpaque("app", provider.Options{SecretName: "shared"}), "token")
	mB := buildManager(t, "beta",
		values, provider.NewOpaque("app", provider.Options{SecretName: "shared"}), "token")

	o := New(ConflictConfig{CrossManager: StrategyError}, logr.Discard())
	o.Register("stack-a", mA)
	o.Register("stack-b", mB)
	_, err := o.Apply(context.Background())
	if err == nil {
		t.Fatalf("expected crossManager conflict")
	}
	if !strings.Contains(err.Error(), "[conflict:error:crossManager]") {
		t.Fatalf("expected level tag in message, got %v", err)
	}
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.Identifier != "default/shared" {
		t.Fatalf("expected ConflictError naming the identifier, got %v", err)
	}
}

func TestApplyCrossManagerOverwriteKeepsLast(t *testing.T) {
	mA := buildManager(t, "alpha",
		map[string]any{"token": "first"},
		provider.NewOpaque("app", provider.Options{SecretName: "shared"}), "token")
	mB := buildManager(t, "beta",
		map[string]any{"token": "second"},
		provider.NewOpaque("app", provider.Options{SecretName: "shared"}), "token")

	o := New(ConflictConfig{CrossManager: StrategyOverwrite}, logr.Discard())
	o.Register("stack-a", mA)
	o.Register("stack-b", mB)
	effects, err := o.Apply(context.Background())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(effects) != 1 {
		t.Fatalf("expected one surviving effect, got %d", len(effects))
	}
	if effects[0].Manager != "beta" {
		t.Fatalf("expected the most recent effect to win, got manager %q", effects[0].Manager)
	}
}

func TestApplyCrossManagerAutoMerge(t *testing.T) {
	mA := buildManager(t, "alpha",
		map[string]any{"db-password": "pw"},
		provider.NewOpaque("app", provider.Options{SecretName: "shared"}), "db-password")
	mB := buildManager(t, "beta",
		map[string]any{"api-token": "tok"},
		provider.NewOpaque("app", provider.Options{SecretName: "shared"}), "api-token")

	o := New(ConflictConfig{CrossManager: StrategyAutoMerge}, logr.Discard())
	o.Register("stack-a", mA)
	o.Register("stack-b", mB)
	effects, err := o.Apply(context.Background())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(effects) != 1 {
		t.Fatalf("expected one merged effect, got %d", len(effects))
	}
	data := effects[0].Value["data"].(map[string]any)
	if _, ok := data["db-password"]; !ok {
		t.Fatalf("expected db-password in merged data, got %v", data)
	}
	if _, ok := data["api-token"]; !ok {
		t.Fatalf("expected api-token in merged data, got %v", data)
	}
}

func TestApplyAutoMergeResidualKeyConflict(t *testing.T) {
	mA := buildManager(t, "alpha",
		map[string]any{"token": "one"},
		provider.NewOpaque("app", provider.Options{SecretName: "shared"}), "token")
	mB := buildManager(t, "beta",
		map[string]any{"token": "two"},
		provider.NewOpaque("app", provider.Options{SecretName: "shared"}), "token")

	o := New(ConflictConfig{CrossManager: StrategyAutoMerge}, logr.Discard())
	o.Register("stack-a", mA)
	o.Register("stack-b", mB)
	_, err := o.Apply(context.Background())
	if err == nil {
		t.Fatalf("expected residual key conflict")
	}
	if !strings.Contains(err.Error(), "[conflict:autoMerge:crossManager]") {
		t.Fatalf("expected autoMerge tag, got %v", err)
	}
	var kcErr *provider.KeyConflictError
	if !errors.As(err, &kcErr) || kcErr.Key != "token" {
		t.Fatalf("expected KeyConflictError naming the key, got %v", err)
	}
}

func TestStrictModeRejectsPermissiveConfig(t *testing.T) {
	o := New(ConflictConfig{CrossManager: StrategyOverwrite, Strict: true}, logr.Discard())
	err := o.Validate(context.Background())
	if err == nil || !strings.Contains(err.Error(), "[config:strictConflictMode]") {
		t.Fatalf("expected strict-mode config error, got %v", err)
	}
}

func TestStrictModeForcesErrorEverywhere(t *testing.T) {
	cfg := ConflictConfig{Strict: true}
	for _, level := range []Level{LevelIntraProvider, LevelCrossProvider, LevelCrossManager} {
		if got := cfg.StrategyFor(level); got != StrategyError {
			t.Fatalf("strict mode: expected error at %s, got %q", level, got)
		}
	}
}

func TestDefaultStrategies(t *testing.T) {
	cfg := ConflictConfig{}
	if cfg.StrategyFor(LevelIntraProvider) != StrategyAutoMerge {
		t.Fatalf("expected intraProvider default autoMerge")
	}
	if cfg.StrategyFor(LevelCrossProvider) != StrategyError {
		t.Fatalf("expected crossProvider default error")
	}
	if cfg.StrategyFor(LevelCrossManager) != StrategyError {
		t.Fatalf("expected crossManager default error")
	}
}

func TestParseLevelAliases(t *testing.T) {
	cases := map[string]Level{
		"intraProvider": LevelIntraProvider,
		"provider":      LevelIntraProvider,
		"crossProvider": LevelCrossProvider,
		"manager":       LevelCrossProvider,
		"crossManager":  LevelCrossManager,
		"crossStack":    LevelCrossManager,
		"stack":         LevelCrossManager,
	}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
	if _, err := ParseLevel("galaxy"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestValidateSurfacesConnectorFailure(t *testing.T) {
	m := manager.New("main")
	_ = m.AddConnector("literal", connector.NewInMemConnector(map[string]any{}))
	_ = m.AddProvider(provider.NewOpaque("app", provider.Options{}))
	_ = m.AddSecret(manager.SecretOptions{Name: "ghost"})
	if err := m.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	o := New(ConflictConfig{}, logr.Discard())
	o.Register("stack", m)
	err := o.Validate(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected validation failure naming the secret, got %v", err)
	}
}
