// Package connector resolves named secret values from external sources.
//
// A Connector is used in two phases: Load fetches a batch of names (the only
// point where I/O happens), then Get returns individual values from the loaded
// batch. Calling Get for a name that was never loaded is a programming error
// and fails with NotLoadedError.
package connector

import (
	"context"
	"fmt"
)

// Connector resolves named secrets from one external source.
type Connector interface {
	// Load fetches the given names from the backing source. It may be called
	// more than once; later calls extend the loaded set.
	Load(ctx context.Context, names []string) error
	// Get returns a previously loaded value. The value is either a string or
	// a flat string-keyed map.
	Get(name string) (any, error)
}

// NotLoadedError reports a Get for a name that was not loaded first.
type NotLoadedError struct {
	Name string
}

func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("secret %q was not loaded; call Load before Get", e.Name)
}

// loadedSet tracks values fetched by Load. Shared by all connectors in this
// package so the load-before-get contract is enforced uniformly.
type loadedSet struct {
	values map[string]any
}

func (s *loadedSet) put(name string, value any) {
	if s.values == nil {
		s.values = map[string]any{}
	}
	s.values[name] = value
}

func (s *loadedSet) get(name string) (any, error) {
	if s.values == nil {
		return nil, &NotLoadedError{Name: name}
	}
	value, ok := s.values[name]
	if !ok {
		return nil, &NotLoadedError{Name: name}
	}
	return value, nil
}
