package connector

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// GCPConfig configures a Google Cloud Secret Manager connector.
type GCPConfig struct {
	ProjectID string `yaml:"projectId,omitempty" json:"projectId,omitempty"`
	// Version selects the secret version; defaults to "latest".
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// gcpClient is the subset of the Secret Manager client used here.
type gcpClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPConnector reads secrets from Google Cloud Secret Manager.
type GCPConnector struct {
	client    gcpClient
	projectID string
	version   string
	loaded    loadedSet
}

// NewGCPConnector builds a connector using application default credentials.
func NewGCPConnector(ctx context.Context, cfg GCPConfig) (*GCPConnector, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcp projectId is required")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Secret Manager client: %w", err)
	}
	return newGCPConnector(client, cfg), nil
}

// NewGCPConnectorWithClient builds a connector over an existing client.
func NewGCPConnectorWithClient(client gcpClient, cfg GCPConfig) *GCPConnector {
	return newGCPConnector(client, cfg)
}

func newGCPConnector(client gcpClient, cfg GCPConfig) *GCPConnector {
	version := cfg.Version
	if version == "" {
		version = "latest"
	}
	return &GCPConnector{client: client, projectID: cfg.ProjectID, version: version}
}

// Load accesses each name's selected version.
func (c *GCPConnector) Load(ctx context.Context, names []string) error {
	for _, name := range names {
		resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", c.projectID, name, c.version)
		resp, err := c.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: resource,
		})
		if err != nil {
			return fmt.Errorf("access secret %q: %w", resource, err)
		}
		if resp.GetPayload() == nil {
			return fmt.Errorf("secret %q has no payload", resource)
		}
		c.loaded.put(name, decodeSecretString(string(resp.GetPayload().GetData())))
	}
	return nil
}

// Get returns a loaded GCP value.
func (c *GCPConnector) Get(name string) (any, error) {
	return c.loaded.get(name)
}
