package provider

import (
	"fmt"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// EffectTypeManifest marks effects carrying a Kubernetes manifest fragment.
const EffectTypeManifest = "manifest"

const defaultNamespace = "default"

// KubeSecretSpec is the parameter table that distinguishes the concrete
// secret kinds. The pipeline around it is identical for every kind.
type KubeSecretSpec struct {
	// SecretType is the manifest's type string, e.g. kubernetes.io/tls.
	SecretType corev1.SecretType
	// RequiredKeys must all be present in a map-shaped value.
	RequiredKeys []string
	// OptionalKeys may be present. When OpenKeys is false, keys outside
	// RequiredKeys+OptionalKeys are rejected.
	OptionalKeys []string
	// OpenKeys admits arbitrary data keys (opaque secrets).
	OpenKeys bool
	// SupportedStrategies lists the kinds GetInjectionPayload accepts.
	SupportedStrategies []StrategyKind
}

// KubeSecretProvider renders secret values as v1 Secret manifests. All
// concrete kinds share this implementation and differ only by spec table.
type KubeSecretProvider struct {
	name       string
	secretName string
	namespace  string
	spec       KubeSecretSpec
}

// Options adjust a provider instance beyond its kind table.
type Options struct {
	// SecretName names the generated Secret manifest; defaults to the
	// provider name.
	SecretName string
	// Namespace defaults to "default".
	Namespace string
}

// New builds a provider from a kind table.
func New(name string, spec KubeSecretSpec, opts Options) *KubeSecretProvider {
	secretName := opts.SecretName
	if secretName == "" {
		secretName = name
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	if len(spec.SupportedStrategies) == 0 {
		spec.SupportedStrategies = []StrategyKind{StrategyEnv, StrategyEnvFrom, StrategyVolume}
	}
	return &KubeSecretProvider{
		name:       name,
		secretName: secretName,
		namespace:  namespace,
		spec:       spec,
	}
}

// NewOpaque builds a provider for generic opaque secrets.
func NewOpaque(name string, opts Options) *KubeSecretProvider {
	return New(name, KubeSecretSpec{
		SecretType: corev1.SecretTypeOpaque,
		OpenKeys:   true,
	}, opts)
}

// NewBasicAuth builds a provider for kubernetes.io/basic-auth secrets.
func NewBasicAuth(name string, opts Options) *KubeSecretProvider {
	return New(name, KubeSecretSpec{
		SecretType:   corev1.SecretTypeBasicAuth,
		RequiredKeys: []string{corev1.BasicAuthUsernameKey, corev1.BasicAuthPasswordKey},
	}, opts)
}

// NewTLS builds a provider for kubernetes.io/tls secrets.
func NewTLS(name string, opts Options) *KubeSecretProvider {
	return New(name, KubeSecretSpec{
		SecretType:   corev1.SecretTypeTLS,
		RequiredKeys: []string{corev1.TLSCertKey, corev1.TLSPrivateKeyKey},
		OptionalKeys: []string{"ca.crt"},
	}, opts)
}

// NewSSHAuth builds a provider for kubernetes.io/ssh-auth secrets.
func NewSSHAuth(name string, opts Options) *KubeSecretProvider {
	return New(name, KubeSecretSpec{
		SecretType:   corev1.SecretTypeSSHAuth,
		RequiredKeys: []string{corev1.SSHAuthPrivateKey},
		OptionalKeys: []string{"known_hosts"},
	}, opts)
}

// NewDockerConfig builds a provider for image pull secrets.
func NewDockerConfig(name string, opts Options) *KubeSecretProvider {
	return New(name, KubeSecretSpec{
		SecretType:          corev1.SecretTypeDockerConfigJson,
		RequiredKeys:        []string{corev1.DockerConfigJsonKey},
		SupportedStrategies: []StrategyKind{StrategyImagePullSecret},
	}, opts)
}

// NewCustom builds a provider for a caller-supplied secret type and key table.
func NewCustom(name string, secretType string, required, optional []string, opts Options) *KubeSecretProvider {
	return New(name, KubeSecretSpec{
		SecretType:   corev1.SecretType(secretType),
		RequiredKeys: required,
		OptionalKeys: optional,
		OpenKeys:     len(required) == 0 && len(optional) == 0,
	}, opts)
}

// Name returns the provider's registered name.
func (p *KubeSecretProvider) Name() string { return p.name }

// SecretName returns the name of the generated Secret manifest.
func (p *KubeSecretProvider) SecretName() string { return p.secretName }

// Prepare validates the value's shape against the kind table and returns one
// manifest effect.
func (p *KubeSecretProvider) Prepare(secretName string, value any) ([]PreparedEffect, error) {
	data, err := p.normalizeValue(secretName, value)
	if err != nil {
		return nil, err
	}
	for _, key := range p.spec.RequiredKeys {
		if _, ok := data[key]; !ok {
			return nil, fmt.Errorf("secret %q is missing required field %q for type %s", secretName, key, p.spec.SecretType)
		}
	}
	if !p.spec.OpenKeys {
		allowed := p.allowedKeys()
		for key := range data {
			if _, ok := allowed[key]; !ok {
				return nil, fmt.Errorf("secret %q has unexpected field %q for type %s", secretName, key, p.spec.SecretType)
			}
		}
	}
	secret := corev1.Secret{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Secret",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      p.secretName,
			Namespace: p.namespace,
		},
		Type: p.spec.SecretType,
		Data: data,
	}
	fragment, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&secret)
	if err != nil {
		return nil, fmt.Errorf("convert secret %q manifest: %w", secretName, err)
	}
	return []PreparedEffect{{
		Type:         EffectTypeManifest,
		SecretName:   secretName,
		ProviderName: p.name,
		Value:        fragment,
	}}, nil
}

// normalizeValue coerces a raw secret value into the data map. A primitive
// maps to the sole required key, or to the secret's own name for open-key
// kinds. Nested structures are rejected.
func (p *KubeSecretProvider) normalizeValue(secretName string, value any) (map[string][]byte, error) {
	switch typed := value.(type) {
	case map[string]any:
		data := make(map[string][]byte, len(typed))
		for key, raw := range typed {
			s, err := primitiveString(raw)
			if err != nil {
				return nil, fmt.Errorf("secret %q field %q: %w", secretName, key, err)
			}
			data[key] = []byte(s)
		}
		return data, nil
	case nil:
		return nil, fmt.Errorf("secret %q has no value", secretName)
	default:
		s, err := primitiveString(value)
		if err != nil {
			return nil, fmt.Errorf("secret %q: %w", secretName, err)
		}
		key := secretName
		if len(p.spec.RequiredKeys) == 1 {
			key = p.spec.RequiredKeys[0]
		} else if len(p.spec.RequiredKeys) > 1 {
			return nil, fmt.Errorf("secret %q must be a map with fields %v for type %s", secretName, p.spec.RequiredKeys, p.spec.SecretType)
		}
		return map[string][]byte{key: []byte(s)}, nil
	}
}

func primitiveString(value any) (string, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case bool:
		return strconv.FormatBool(typed), nil
	case int:
		return strconv.Itoa(typed), nil
	case int64:
		return strconv.FormatInt(typed, 10), nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("nested values are not allowed, got %T", value)
	}
}

func (p *KubeSecretProvider) allowedKeys() map[string]struct{} {
	allowed := make(map[string]struct{}, len(p.spec.RequiredKeys)+len(p.spec.OptionalKeys))
	for _, key := range p.spec.RequiredKeys {
		allowed[key] = struct{}{}
	}
	for _, key := range p.spec.OptionalKeys {
		allowed[key] = struct{}{}
	}
	return allowed
}

// GetTargetPath returns the default injection path per strategy kind,
// honoring an explicit override.
func (p *KubeSecretProvider) GetTargetPath(strategy Strategy) (string, error) {
	if strategy.TargetPath != "" {
		return strategy.TargetPath, nil
	}
	idx := strategy.containerIndex()
	switch strategy.Kind {
	case StrategyEnv, "":
		return fmt.Sprintf("spec.template.spec.containers[%d].env", idx), nil
	case StrategyEnvFrom:
		return fmt.Sprintf("spec.template.spec.containers[%d].envFrom", idx), nil
	case StrategyAnnotation:
		return "metadata.annotations", nil
	case StrategyImagePullSecret:
		return "spec.template.spec.imagePullSecrets", nil
	case StrategyVolume:
		return "spec.template.spec.volumes", nil
	default:
		return "", &UnsupportedStrategyError{Provider: p.name, Kind: strategy.Kind}
	}
}
