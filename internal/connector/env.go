package connector

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvConnector reads secret values from the process environment. An optional
// prefix is prepended to each name; names are upper-cased and dashes become
// underscores, so secret "db-password" with prefix "APP_" reads APP_DB_PASSWORD.
type EnvConnector struct {
	prefix string
	loaded loadedSet
}

// NewEnvConnector builds an environment-backed connector.
func NewEnvConnector(prefix string) *EnvConnector {
	return &EnvConnector{prefix: prefix}
}

// Load verifies every name is present in the environment.
func (c *EnvConnector) Load(_ context.Context, names []string) error {
	for _, name := range names {
		key := c.envKey(name)
		value, ok := os.LookupEnv(key)
		if !ok {
			return fmt.Errorf("environment variable %s not set (secret %q)", key, name)
		}
		c.loaded.put(name, value)
	}
	return nil
}

// Get returns a loaded environment value.
func (c *EnvConnector) Get(name string) (any, error) {
	return c.loaded.get(name)
}

func (c *EnvConnector) envKey(name string) string {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return c.prefix + key
}
