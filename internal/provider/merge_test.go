package provider

import (
	"errors"
	"testing"
)

func prepareOne(t *testing.T, p *KubeSecretProvider, secretName string, value any) PreparedEffect {
	t.Helper()
	effects, err := p.Prepare(secretName, value)
	if err != nil {
		t.Fatalf("prepare %s: %v", secretName, err)
	}
	return effects[0]
}

func TestMergeSecretsDisjointKeys(t *testing.T) {
	p := NewOpaque("app", Options{SecretName: "app-secrets"})
	a := prepareOne(t, p, "db-password", "pw")
	b := prepareOne(t, p, "api-token", "tok")

	merged, err := p.MergeSecrets([]PreparedEffect{a, b})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected one merged effect, got %d", len(merged))
	}
	data := merged[0].Value["data"].(map[string]any)
	if len(data) != 2 {
		t.Fatalf("expected both keys in merged data, got %v", data)
	}
	if _, ok := data["db-password"]; !ok {
		t.Fatalf("missing db-password key: %v", data)
	}
	if _, ok := data["api-token"]; !ok {
		t.Fatalf("missing api-token key: %v", data)
	}

	// Commutative over disjoint keys.
	reversed, err := p.MergeSecrets([]PreparedEffect{b, a})
	if err != nil {
		t.Fatalf("merge reversed: %v", err)
	}
	reversedData := reversed[0].Value["data"].(map[string]any)
	for key, value := range data {
		if reversedData[key] != value {
			t.Fatalf("merge is not commutative for key %q", key)
		}
	}
}

func TestMergeSecretsSelfIsNoOp(t *testing.T) {
	p := NewOpaque("app", Options{})
	a := prepareOne(t, p, "db-password", "pw")
	merged, err := p.MergeSecrets([]PreparedEffect{a, a})
	if err != nil {
		t.Fatalf("merge with self: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected one effect, got %d", len(merged))
	}
	data := merged[0].Value["data"].(map[string]any)
	if len(data) != 1 {
		t.Fatalf("expected unchanged data, got %v", data)
	}
}

func TestMergeSecretsKeyConflict(t *testing.T) {
	p := NewOpaque("app", Options{SecretName: "app-secrets", Namespace: "prod"})
	a := prepareOne(t, p, "token", "one")
	b := prepareOne(t, p, "token", "two")
	_, err := p.MergeSecrets([]PreparedEffect{a, b})
	if err == nil {
		t.Fatalf("expected key conflict error")
	}
	var kcErr *KeyConflictError
	if !errors.As(err, &kcErr) {
		t.Fatalf("expected KeyConflictError, got %T", err)
	}
	if kcErr.Key != "token" {
		t.Fatalf("expected error to name key token, got %q", kcErr.Key)
	}
	if kcErr.Identifier != "prod/app-secrets" {
		t.Fatalf("expected error to name the identifier, got %q", kcErr.Identifier)
	}
}

func TestMergeSecretsDistinctIdentifiersUntouched(t *testing.T) {
	a := prepareOne(t, NewOpaque("a", Options{SecretName: "first"}), "x", "1")
	b := prepareOne(t, NewOpaque("b", Options{SecretName: "second"}), "y", "2")
	p := NewOpaque("merger", Options{})
	merged, err := p.MergeSecrets([]PreparedEffect{a, b})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected two effects, got %d", len(merged))
	}
	if p.GetEffectIdentifier(merged[0]) != "default/first" || p.GetEffectIdentifier(merged[1]) != "default/second" {
		t.Fatalf("expected first-seen identifier order, got %q then %q",
			p.GetEffectIdentifier(merged[0]), p.GetEffectIdentifier(merged[1]))
	}
}
