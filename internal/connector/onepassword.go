package connector

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/1password/onepassword-sdk-go"
)

// OPConfig configures a 1Password connector.
type OPConfig struct {
	// Vault is the 1Password vault name used to build default references.
	Vault string `yaml:"vault,omitempty" json:"vault,omitempty"`
	// Field is the item field read by default references; defaults to "credential".
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	// Refs maps secret names to explicit op:// references, overriding the
	// vault/name/field convention.
	Refs map[string]string `yaml:"refs,omitempty" json:"refs,omitempty"`
	// TokenFile is read when OP_SERVICE_ACCOUNT_TOKEN is not set.
	TokenFile string `yaml:"tokenFile,omitempty" json:"tokenFile,omitempty"`
}

// opResolver is the secret-resolution surface of the 1Password SDK client.
type opResolver interface {
	Resolve(ctx context.Context, reference string) (string, error)
}

// OPConnector reads secret values through the 1Password service-account SDK.
type OPConnector struct {
	resolver opResolver
	cfg      OPConfig
	loaded   loadedSet
}

// NewOPConnector builds a 1Password-backed connector.
func NewOPConnector(ctx context.Context, cfg OPConfig) (*OPConnector, error) {
	if cfg.Vault == "" && len(cfg.Refs) == 0 {
		return nil, fmt.Errorf("1password connector requires a vault or explicit refs")
	}
	token, err := opToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	client, err := onepassword.NewClient(ctx,
		onepassword.WithServiceAccountToken(token),
		onepassword.WithIntegrationInfo("kforge", "v1"),
	)
	if err != nil {
		return nil, err
	}
	return &OPConnector{resolver: client.Secrets(), cfg: cfg}, nil
}

// NewOPConnectorWithResolver builds a connector over an existing resolver.
func NewOPConnectorWithResolver(resolver opResolver, cfg OPConfig) *OPConnector {
	return &OPConnector{resolver: resolver, cfg: cfg}
}

// Load resolves each name's op:// reference.
func (c *OPConnector) Load(ctx context.Context, names []string) error {
	for _, name := range names {
		ref := c.reference(name)
		value, err := c.resolver.Resolve(ctx, ref)
		if err != nil {
			return fmt.Errorf("resolve 1password reference %q: %w", ref, err)
		}
		c.loaded.put(name, value)
	}
	return nil
}

// Get returns a loaded 1Password value.
func (c *OPConnector) Get(name string) (any, error) {
	return c.loaded.get(name)
}

func (c *OPConnector) reference(name string) string {
	if ref, ok := c.cfg.Refs[name]; ok {
		return ref
	}
	field := c.cfg.Field
	if field == "" {
		field = "credential"
	}
	return fmt.Sprintf("op://%s/%s/%s", c.cfg.Vault, name, field)
}

func opToken(tokenFile string) (string, error) {
	if token := os.Getenv("OP_SERVICE_ACCOUNT_TOKEN"); token != "" {
		return strings.TrimSpace(token), nil
	}
	if tokenFile != "" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("no token provided: set OP_SERVICE_ACCOUNT_TOKEN or configure tokenFile")
}
