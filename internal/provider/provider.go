// Package provider turns resolved secret values into Kubernetes Secret
// manifest fragments and injection payloads.
//
// A Provider is the policy object for one secret sink: Prepare validates a
// raw value and materializes effects, GetInjectionPayload turns a group of
// injection requests into the payload placed at a resource path, and
// MergeSecrets folds colliding effects.
package provider

import "fmt"

// PreparedEffect is one provider-materialized output. Effects sharing an
// identifier (see Provider.GetEffectIdentifier) are the unit of conflict
// detection.
type PreparedEffect struct {
	Type         string
	SecretName   string
	ProviderName string
	// Value is the manifest fragment, already in plain-map form.
	Value map[string]any
}

// InjectionMeta carries the secret-level detail of one injection request.
type InjectionMeta struct {
	SecretName string
	TargetName string
	Strategy   Strategy
}

// Injection is a request to place a secret's value at a path inside a named
// output resource.
type Injection struct {
	ResourceID string
	Path       string
	Meta       InjectionMeta
}

// Provider is the policy contract for one secret sink.
type Provider interface {
	Name() string
	// Prepare validates the value's shape and returns the effects it
	// materializes. The value is a primitive or a flat string-keyed map.
	Prepare(secretName string, value any) ([]PreparedEffect, error)
	// GetTargetPath returns the default resource path for a strategy,
	// honoring an explicit override.
	GetTargetPath(strategy Strategy) (string, error)
	// GetInjectionPayload converts a group of injections sharing one
	// provider, resource and path into a placement payload.
	GetInjectionPayload(injections []Injection) (any, error)
	// MergeSecrets folds same-identifier effects into one.
	MergeSecrets(effects []PreparedEffect) ([]PreparedEffect, error)
	// GetEffectIdentifier derives the conflict-detection identity of an
	// effect from its embedded data.
	GetEffectIdentifier(effect PreparedEffect) string
}

// UnsupportedStrategyError reports a strategy kind the provider cannot serve.
type UnsupportedStrategyError struct {
	Provider string
	Kind     StrategyKind
}

func (e *UnsupportedStrategyError) Error() string {
	return fmt.Sprintf("provider %q does not support injection strategy %q", e.Provider, e.Kind)
}

// KeyConflictError reports a duplicate data key with differing values while
// merging effects under one identifier.
type KeyConflictError struct {
	Key        string
	Identifier string
}

func (e *KeyConflictError) Error() string {
	return fmt.Sprintf("key %q has conflicting values under identifier %q", e.Key, e.Identifier)
}
