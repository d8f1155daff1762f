// Package injection accumulates per-stack secret injection requests and
// resolves them into immutable records the composer can consume.
package injection

import (
	"fmt"

	"github.com/example/kforge/internal/composer"
	"github.com/example/kforge/internal/provider"
)

// Request accumulates one secret's injection target. It is a value: each
// chained call returns a copy, and nothing happens until Resolve.
type Request struct {
	secretName string
	resourceID string
	targetName string
	strategy   provider.Strategy
	path       string
}

// NewRequest starts a request for the named secret.
func NewRequest(secretName string) Request {
	return Request{secretName: secretName}
}

// IntoResource picks the output resource receiving the payload.
func (r Request) IntoResource(id string) Request {
	r.resourceID = id
	return r
}

// WithStrategy picks the injection mechanism.
func (r Request) WithStrategy(s provider.Strategy) Request {
	r.strategy = s
	return r
}

// WithTargetName sets the name the payload takes at the target (the env
// variable name for env injections, the volume name for volume injections).
func (r Request) WithTargetName(name string) Request {
	r.targetName = name
	return r
}

// At overrides the target path inside the resource.
func (r Request) At(path string) Request {
	r.path = path
	return r
}

// Record is a fully resolved injection request.
type Record struct {
	ProviderID string
	Provider   provider.Provider
	ResourceID string
	Path       string
	Meta       provider.InjectionMeta
}

// Resolve binds the request to a provider and fixes the target path. The
// record it returns is immutable; requests that never resolve contribute
// nothing to the build.
func (r Request) Resolve(p provider.Provider) (Record, error) {
	if r.secretName == "" {
		return Record{}, fmt.Errorf("injection request has no secret name")
	}
	if r.resourceID == "" {
		return Record{}, fmt.Errorf("injection of secret %q has no target resource", r.secretName)
	}
	path := r.path
	if path == "" {
		resolved, err := p.GetTargetPath(r.strategy)
		if err != nil {
			return Record{}, fmt.Errorf("injection of secret %q: %w", r.secretName, err)
		}
		path = resolved
	}
	return Record{
		ProviderID: p.Name(),
		Provider:   p,
		ResourceID: r.resourceID,
		Path:       path,
		Meta: provider.InjectionMeta{
			SecretName: r.secretName,
			TargetName: r.targetName,
			Strategy:   r.strategy,
		},
	}, nil
}

// asInjection converts a record to the provider-facing shape.
func asInjection(rec Record) provider.Injection {
	return provider.Injection{
		ResourceID: rec.ResourceID,
		Path:       rec.Path,
		Meta:       rec.Meta,
	}
}

type groupKey struct {
	providerID string
	resourceID string
	path       string
}

// Apply groups records by provider, resource and path, asks each group's
// provider for its payload, and injects it into the composer. Groups are
// processed in first-seen order; records keep input order within a group.
func Apply(records []Record, c *composer.Composer) error {
	var order []groupKey
	groups := map[groupKey][]Record{}
	for _, rec := range records {
		key := groupKey{providerID: rec.ProviderID, resourceID: rec.ResourceID, path: rec.Path}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}
	for _, key := range order {
		group := groups[key]
		injections := make([]provider.Injection, len(group))
		for i, rec := range group {
			injections[i] = asInjection(rec)
		}
		payload, err := group[0].Provider.GetInjectionPayload(injections)
		if err != nil {
			return fmt.Errorf("resource %q path %q: %w", key.resourceID, key.path, err)
		}
		if err := c.Inject(key.resourceID, key.path, payload); err != nil {
			return err
		}
	}
	return nil
}
