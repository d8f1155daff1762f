package provider

import "fmt"

// GetEffectIdentifier derives the conflict-detection identity from the
// manifest's metadata, defaulting the namespace when absent.
func (p *KubeSecretProvider) GetEffectIdentifier(effect PreparedEffect) string {
	namespace := defaultNamespace
	name := ""
	if meta, ok := effect.Value["metadata"].(map[string]any); ok {
		if ns, ok := meta["namespace"].(string); ok && ns != "" {
			namespace = ns
		}
		if n, ok := meta["name"].(string); ok {
			name = n
		}
	}
	return namespace + "/" + name
}

// MergeSecrets groups effects by identifier and unions their data maps.
// A key present under one identifier with differing values fails. Merging an
// effect with itself is a no-op.
func (p *KubeSecretProvider) MergeSecrets(effects []PreparedEffect) ([]PreparedEffect, error) {
	var order []string
	grouped := map[string]PreparedEffect{}
	for _, effect := range effects {
		id := p.GetEffectIdentifier(effect)
		base, ok := grouped[id]
		if !ok {
			order = append(order, id)
			grouped[id] = cloneEffect(effect)
			continue
		}
		merged, err := mergeEffectData(base, effect, id)
		if err != nil {
			return nil, err
		}
		grouped[id] = merged
	}
	out := make([]PreparedEffect, 0, len(order))
	for _, id := range order {
		out = append(out, grouped[id])
	}
	return out, nil
}

func mergeEffectData(base, next PreparedEffect, identifier string) (PreparedEffect, error) {
	baseData, _ := base.Value["data"].(map[string]any)
	nextData, _ := next.Value["data"].(map[string]any)
	merged := make(map[string]any, len(baseData)+len(nextData))
	for key, value := range baseData {
		merged[key] = value
	}
	for key, value := range nextData {
		if existing, ok := merged[key]; ok && existing != value {
			return PreparedEffect{}, &KeyConflictError{Key: key, Identifier: identifier}
		}
		merged[key] = value
	}
	out := cloneEffect(base)
	out.Value["data"] = merged
	return out, nil
}

func cloneEffect(effect PreparedEffect) PreparedEffect {
	value := make(map[string]any, len(effect.Value))
	for k, v := range effect.Value {
		value[k] = v
	}
	if data, ok := value["data"].(map[string]any); ok {
		copied := make(map[string]any, len(data))
		for k, v := range data {
			copied[k] = v
		}
		value["data"] = copied
	}
	return PreparedEffect{
		Type:         effect.Type,
		SecretName:   effect.SecretName,
		ProviderName: effect.ProviderName,
		Value:        value,
	}
}

// Describe renders an effect for logs and conflict messages.
func Describe(effect PreparedEffect) string {
	return fmt.Sprintf("%s (secret %q via provider %q)", effect.Type, effect.SecretName, effect.ProviderName)
}
