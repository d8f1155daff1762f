package provider

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// GetInjectionPayload converts one group of injections, sharing this provider,
// one resource and one path, into the payload placed at that path.
func (p *KubeSecretProvider) GetInjectionPayload(injections []Injection) (any, error) {
	if len(injections) == 0 {
		return []any{}, nil
	}

	kinds := make([]StrategyKind, len(injections))
	distinct := distinctKinds(injections, kinds)
	if len(distinct) > 1 {
		return nil, fmt.Errorf(
			"mixed injection strategies %s in one group; all injections sharing a resource path must use the same strategy (this usually indicates a framework bug or a misconfigured injection path)",
			formatKinds(distinct))
	}

	kind := distinct[0]
	if !p.supportsKind(kind) {
		return nil, &UnsupportedStrategyError{Provider: p.name, Kind: kind}
	}
	switch kind {
	case StrategyEnv:
		return p.envPayload(injections)
	case StrategyEnvFrom:
		return p.envFromPayload(injections)
	case StrategyImagePullSecret:
		return p.imagePullSecretPayload(injections)
	case StrategyVolume:
		return p.volumePayload(injections)
	default:
		return nil, &UnsupportedStrategyError{Provider: p.name, Kind: kind}
	}
}

// distinctKinds records every injection's effective kind into kinds and
// returns the distinct ones in first-seen order.
func distinctKinds(injections []Injection, kinds []StrategyKind) []StrategyKind {
	var distinct []StrategyKind
	seen := map[StrategyKind]struct{}{}
	for i, inj := range injections {
		k := effectiveKind(inj)
		kinds[i] = k
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			distinct = append(distinct, k)
		}
	}
	return distinct
}

func formatKinds(kinds []StrategyKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (p *KubeSecretProvider) supportsKind(kind StrategyKind) bool {
	for _, k := range p.spec.SupportedStrategies {
		if k == kind {
			return true
		}
	}
	return false
}

// envPayload emits one secretKeyRef entry per injection, in input order.
func (p *KubeSecretProvider) envPayload(injections []Injection) (any, error) {
	allowed := p.allowedKeys()
	out := make([]any, 0, len(injections))
	for _, inj := range injections {
		targetName := inj.Meta.TargetName
		if targetName == "" {
			return nil, fmt.Errorf("env injection for secret %q requires a non-empty targetName", inj.Meta.SecretName)
		}
		key := inj.Meta.Strategy.Key
		if key == "" {
			return nil, fmt.Errorf("env injection for secret %q requires a data key", inj.Meta.SecretName)
		}
		if !p.spec.OpenKeys {
			if _, ok := allowed[key]; !ok {
				return nil, fmt.Errorf("env injection for secret %q uses key %q, which is not in the %s key set", inj.Meta.SecretName, key, p.spec.SecretType)
			}
		}
		entry := corev1.EnvVar{
			Name: targetName,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: p.secretName},
					Key:                  key,
				},
			},
		}
		converted, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&entry)
		if err != nil {
			return nil, fmt.Errorf("convert env entry for secret %q: %w", inj.Meta.SecretName, err)
		}
		out = append(out, converted)
	}
	return out, nil
}

// envFromPayload collapses a homogeneous group to exactly one bulk reference.
// Every injection must agree on the prefix; absence counts as a distinct
// prefix of its own.
func (p *KubeSecretProvider) envFromPayload(injections []Injection) (any, error) {
	var prefixes []string
	seen := map[string]struct{}{}
	for _, inj := range injections {
		prefix := inj.Meta.Strategy.Prefix
		if _, ok := seen[prefix]; !ok {
			seen[prefix] = struct{}{}
			prefixes = append(prefixes, prefix)
		}
	}
	if len(prefixes) > 1 {
		display := make([]string, len(prefixes))
		for i, prefix := range prefixes {
			if prefix == "" {
				display[i] = "(none)"
			} else {
				display[i] = prefix
			}
		}
		return nil, fmt.Errorf("inconsistent envFrom prefixes [%s] in one group; all envFrom injections on a path must share one prefix", strings.Join(display, ", "))
	}
	entry := corev1.EnvFromSource{
		Prefix: prefixes[0],
		SecretRef: &corev1.SecretEnvSource{
			LocalObjectReference: corev1.LocalObjectReference{Name: p.secretName},
		},
	}
	converted, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&entry)
	if err != nil {
		return nil, fmt.Errorf("convert envFrom entry: %w", err)
	}
	return []any{converted}, nil
}

func (p *KubeSecretProvider) imagePullSecretPayload(injections []Injection) (any, error) {
	out := make([]any, 0, len(injections))
	for range injections {
		ref := corev1.LocalObjectReference{Name: p.secretName}
		converted, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&ref)
		if err != nil {
			return nil, fmt.Errorf("convert imagePullSecret entry: %w", err)
		}
		out = append(out, converted)
	}
	return out, nil
}

func (p *KubeSecretProvider) volumePayload(injections []Injection) (any, error) {
	out := make([]any, 0, len(injections))
	for _, inj := range injections {
		name := inj.Meta.TargetName
		if name == "" {
			return nil, fmt.Errorf("volume injection for secret %q requires a non-empty targetName", inj.Meta.SecretName)
		}
		vol := corev1.Volume{
			Name: name,
			VolumeSource: corev1.VolumeSource{
				Secret: &corev1.SecretVolumeSource{SecretName: p.secretName},
			},
		}
		converted, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&vol)
		if err != nil {
			return nil, fmt.Errorf("convert volume entry for secret %q: %w", inj.Meta.SecretName, err)
		}
		out = append(out, converted)
	}
	return out, nil
}
