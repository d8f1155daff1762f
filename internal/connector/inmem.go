package connector

import (
	"context"
	"fmt"
)

// InMemConnector serves values from a seeded map. It backs literal secrets in
// config and doubles as the test connector.
type InMemConnector struct {
	seed   map[string]any
	loaded loadedSet
}

// NewInMemConnector builds a connector over the given values.
func NewInMemConnector(values map[string]any) *InMemConnector {
	seed := make(map[string]any, len(values))
	for k, v := range values {
		seed[k] = v
	}
	return &InMemConnector{seed: seed}
}

// Load verifies every name exists in the seeded map.
func (c *InMemConnector) Load(_ context.Context, names []string) error {
	for _, name := range names {
		value, ok := c.seed[name]
		if !ok {
			return fmt.Errorf("secret %q not found in literal values", name)
		}
		c.loaded.put(name, value)
	}
	return nil
}

// Get returns a loaded value.
func (c *InMemConnector) Get(name string) (any, error) {
	return c.loaded.get(name)
}
