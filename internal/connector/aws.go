package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client used here.
// Tests substitute a fake.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSConfig configures an AWS Secrets Manager connector.
type AWSConfig struct {
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	// Endpoint overrides the service endpoint, for LocalStack-style testing.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	// Prefix is prepended to every secret name when fetching.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// AWSConnector reads secrets from AWS Secrets Manager. JSON secret strings
// decode to flat maps; anything else passes through as a string.
type AWSConnector struct {
	client SecretsManagerAPI
	prefix string
	loaded loadedSet
}

// NewAWSConnector builds a connector using the default AWS credential chain.
func NewAWSConnector(ctx context.Context, cfg AWSConfig) (*AWSConnector, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return &AWSConnector{
		client: secretsmanager.NewFromConfig(awsCfg, clientOpts...),
		prefix: cfg.Prefix,
	}, nil
}

// NewAWSConnectorWithClient builds a connector over an existing client.
func NewAWSConnectorWithClient(client SecretsManagerAPI, prefix string) *AWSConnector {
	return &AWSConnector{client: client, prefix: prefix}
}

// Load fetches each name from Secrets Manager.
func (c *AWSConnector) Load(ctx context.Context, names []string) error {
	for _, name := range names {
		secretID := c.prefix + name
		out, err := c.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			return fmt.Errorf("get secret %q from AWS Secrets Manager: %w", secretID, err)
		}
		var raw string
		switch {
		case out.SecretString != nil:
			raw = *out.SecretString
		case out.SecretBinary != nil:
			raw = string(out.SecretBinary)
		default:
			return fmt.Errorf("secret %q has no value", secretID)
		}
		c.loaded.put(name, decodeSecretString(raw))
	}
	return nil
}

// Get returns a loaded AWS value.
func (c *AWSConnector) Get(name string) (any, error) {
	return c.loaded.get(name)
}

// decodeSecretString returns a flat map when the payload is a JSON object,
// otherwise the raw string.
func decodeSecretString(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return raw
	}
	return decoded
}
