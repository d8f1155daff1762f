package provider

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestPrepareSSHAuthPrivateKeyOnly(t *testing.T) {
	p := NewSSHAuth("git-ssh", Options{Namespace: "ci"})
	effects, err := p.Prepare("deploy-key", map[string]any{
		"ssh-privatekey": "PRIVATE KEY DATA",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(effects) != 1 {
		t.Fatalf("expected 1 effect, got %d", len(effects))
	}
	effect := effects[0]
	data, ok := effect.Value["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data map, got %T", effect.Value["data"])
	}
	want := base64.StdEncoding.EncodeToString([]byte("PRIVATE KEY DATA"))
	if data["ssh-privatekey"] != want {
		t.Fatalf("expected base64 private key %q, got %v", want, data["ssh-privatekey"])
	}
	if _, ok := data["known_hosts"]; ok {
		t.Fatalf("expected no known_hosts key, got %v", data)
	}
	if got := effect.Value["type"]; got != "kubernetes.io/ssh-auth" {
		t.Fatalf("expected ssh-auth type, got %v", got)
	}
}

func TestPrepareManifestShape(t *testing.T) {
	p := NewBasicAuth("db-auth", Options{Namespace: "prod", SecretName: "db-credentials"})
	effects, err := p.Prepare("db", map[string]any{"username": "admin", "password": "hunter2"})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	value := effects[0].Value
	if value["apiVersion"] != "v1" || value["kind"] != "Secret" {
		t.Fatalf("expected v1 Secret manifest, got %v/%v", value["apiVersion"], value["kind"])
	}
	meta, ok := value["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected metadata map, got %T", value["metadata"])
	}
	if meta["name"] != "db-credentials" || meta["namespace"] != "prod" {
		t.Fatalf("unexpected metadata: %v", meta)
	}
	if p.GetEffectIdentifier(effects[0]) != "prod/db-credentials" {
		t.Fatalf("unexpected identifier %q", p.GetEffectIdentifier(effects[0]))
	}
}

func TestPrepareMissingRequiredKey(t *testing.T) {
	p := NewBasicAuth("db-auth", Options{})
	_, err := p.Prepare("db", map[string]any{"username": "admin"})
	if err == nil || !strings.Contains(err.Error(), "password") {
		t.Fatalf("expected error naming the missing field, got %v", err)
	}
}

func TestPrepareUnexpectedKey(t *testing.T) {
	p := NewTLS("web-tls", Options{})
	_, err := p.Prepare("cert", map[string]any{
		"tls.crt": "CERT",
		"tls.key": "KEY",
		"extra":   "nope",
	})
	if err == nil || !strings.Contains(err.Error(), "extra") {
		t.Fatalf("expected error naming the unexpected field, got %v", err)
	}
}

func TestPrepareNestedValueRejected(t *testing.T) {
	p := NewOpaque("app", Options{})
	_, err := p.Prepare("cfg", map[string]any{
		"nested": map[string]any{"deep": "no"},
	})
	if err == nil || !strings.Contains(err.Error(), "nested") {
		t.Fatalf("expected nested-value error naming the field, got %v", err)
	}
}

func TestPreparePrimitiveValue(t *testing.T) {
	// Open-key kinds store a primitive under the secret's own name; a kind
	// with exactly one required key stores it under that key.
	opaque := NewOpaque("app", Options{})
	effects, err := opaque.Prepare("api-token", "tok-123")
	if err != nil {
		t.Fatalf("prepare opaque: %v", err)
	}
	data := effects[0].Value["data"].(map[string]any)
	if _, ok := data["api-token"]; !ok {
		t.Fatalf("expected primitive stored under secret name, got %v", data)
	}

	docker := NewDockerConfig("pull", Options{})
	effects, err = docker.Prepare("registry", `{"auths":{}}`)
	if err != nil {
		t.Fatalf("prepare dockerconfig: %v", err)
	}
	data = effects[0].Value["data"].(map[string]any)
	if _, ok := data[".dockerconfigjson"]; !ok {
		t.Fatalf("expected primitive stored under .dockerconfigjson, got %v", data)
	}

	basic := NewBasicAuth("db", Options{})
	if _, err := basic.Prepare("db", "just-a-password"); err == nil {
		t.Fatalf("expected primitive value to fail for multi-key type")
	}
}

func TestGetTargetPathDefaults(t *testing.T) {
	p := NewOpaque("app", Options{})
	cases := []struct {
		strategy Strategy
		want     string
	}{
		{Strategy{Kind: StrategyEnv}, "spec.template.spec.containers[0].env"},
		{Strategy{Kind: StrategyEnvFrom}, "spec.template.spec.containers[0].envFrom"},
		{Strategy{Kind: StrategyEnv, ContainerIndex: intPtr(2)}, "spec.template.spec.containers[2].env"},
		{Strategy{Kind: StrategyImagePullSecret}, "spec.template.spec.imagePullSecrets"},
		{Strategy{Kind: StrategyVolume}, "spec.template.spec.volumes"},
		{Strategy{Kind: StrategyAnnotation}, "metadata.annotations"},
		{Strategy{Kind: StrategyEnv, TargetPath: "spec.jobTemplate.spec.template.spec.containers[0].env"}, "spec.jobTemplate.spec.template.spec.containers[0].env"},
	}
	for _, tc := range cases {
		got, err := p.GetTargetPath(tc.strategy)
		if err != nil {
			t.Fatalf("target path for %v: %v", tc.strategy, err)
		}
		if got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestGetTargetPathUnsupportedKind(t *testing.T) {
	p := NewOpaque("app", Options{})
	_, err := p.GetTargetPath(Strategy{Kind: "teleport"})
	if err == nil {
		t.Fatalf("expected unsupported strategy error")
	}
	var usErr *UnsupportedStrategyError
	if !errors.As(err, &usErr) {
		t.Fatalf("expected UnsupportedStrategyError, got %T", err)
	}
	if usErr.Kind != "teleport" {
		t.Fatalf("expected error to carry the kind, got %q", usErr.Kind)
	}
}

func intPtr(i int) *int { return &i }
