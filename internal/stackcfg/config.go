// Package stackcfg models the YAML project configuration: named connectors,
// conflict policy, and the per-stack secret and resource declarations.
package stackcfg

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/example/kforge/internal/connector"
	"github.com/example/kforge/internal/orchestrator"
	"github.com/example/kforge/internal/provider"
)

// Config is the root of a project configuration file.
type Config struct {
	Connectors map[string]connector.Config `yaml:"connectors,omitempty" json:"connectors,omitempty"`
	Conflict   ConflictConfig              `yaml:"conflict,omitempty" json:"conflict,omitempty"`
	Stacks     []StackConfig               `yaml:"stacks,omitempty" json:"stacks,omitempty"`
}

// ConflictConfig configures the merge engine. Levels maps a level name to a
// strategy name; historical level spellings are accepted.
type ConflictConfig struct {
	Strict bool              `yaml:"strict,omitempty" json:"strict,omitempty"`
	Levels map[string]string `yaml:"levels,omitempty" json:"levels,omitempty"`
}

// StackConfig declares one stack: its managers' registries and the resources
// receiving injections.
type StackConfig struct {
	Name             string             `yaml:"name" json:"name"`
	DefaultConnector string             `yaml:"defaultConnector,omitempty" json:"defaultConnector,omitempty"`
	DefaultProvider  string             `yaml:"defaultProvider,omitempty" json:"defaultProvider,omitempty"`
	Connectors       []string           `yaml:"connectors,omitempty" json:"connectors,omitempty"`
	Providers        []ProviderConfig   `yaml:"providers,omitempty" json:"providers,omitempty"`
	Secrets          []SecretConfig     `yaml:"secrets,omitempty" json:"secrets,omitempty"`
	Resources        []ResourceConfig   `yaml:"resources,omitempty" json:"resources,omitempty"`
	Injections       []InjectionConfig  `yaml:"injections,omitempty" json:"injections,omitempty"`
}

// ProviderConfig declares one provider inside a stack.
type ProviderConfig struct {
	Name         string   `yaml:"name" json:"name"`
	Type         string   `yaml:"type,omitempty" json:"type,omitempty"`
	SecretName   string   `yaml:"secretName,omitempty" json:"secretName,omitempty"`
	Namespace    string   `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	SecretType   string   `yaml:"secretType,omitempty" json:"secretType,omitempty"`
	RequiredKeys []string `yaml:"requiredKeys,omitempty" json:"requiredKeys,omitempty"`
	OptionalKeys []string `yaml:"optionalKeys,omitempty" json:"optionalKeys,omitempty"`
}

// SecretConfig declares one secret and its optional connector/provider pins.
type SecretConfig struct {
	Name      string `yaml:"name" json:"name"`
	Connector string `yaml:"connector,omitempty" json:"connector,omitempty"`
	Provider  string `yaml:"provider,omitempty" json:"provider,omitempty"`
}

// ResourceConfig declares one output resource. Template holds the inline
// manifest; File points to a YAML manifest on disk instead. Instance entries
// are rendered verbatim and refuse injections.
type ResourceConfig struct {
	Name     string         `yaml:"name" json:"name"`
	Kind     string         `yaml:"kind,omitempty" json:"kind,omitempty"`
	Template map[string]any `yaml:"template,omitempty" json:"template,omitempty"`
	File     string         `yaml:"file,omitempty" json:"file,omitempty"`
	Override map[string]any `yaml:"override,omitempty" json:"override,omitempty"`
}

// InjectionConfig routes one secret's payload into a resource.
type InjectionConfig struct {
	Secret     string         `yaml:"secret" json:"secret"`
	Resource   string         `yaml:"resource" json:"resource"`
	Provider   string         `yaml:"provider,omitempty" json:"provider,omitempty"`
	TargetName string         `yaml:"targetName,omitempty" json:"targetName,omitempty"`
	Path       string         `yaml:"path,omitempty" json:"path,omitempty"`
	Strategy   StrategyConfig `yaml:"strategy,omitempty" json:"strategy,omitempty"`
}

// StrategyConfig mirrors provider.Strategy in configuration form.
type StrategyConfig struct {
	Kind           string `yaml:"kind,omitempty" json:"kind,omitempty"`
	ContainerIndex *int   `yaml:"containerIndex,omitempty" json:"containerIndex,omitempty"`
	TargetPath     string `yaml:"targetPath,omitempty" json:"targetPath,omitempty"`
	Key            string `yaml:"key,omitempty" json:"key,omitempty"`
	Prefix         string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	MountPath      string `yaml:"mountPath,omitempty" json:"mountPath,omitempty"`
}

// ToStrategy converts the configured form.
func (s StrategyConfig) ToStrategy() provider.Strategy {
	return provider.Strategy{
		Kind:           provider.StrategyKind(s.Kind),
		ContainerIndex: s.ContainerIndex,
		TargetPath:     s.TargetPath,
		Key:            s.Key,
		Prefix:         s.Prefix,
		MountPath:      s.MountPath,
	}
}

// Load reads a project configuration file. A file with a top-level "kforge"
// key is unwrapped; otherwise the document is parsed as a raw config.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, fmt.Errorf("config path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Config{}, nil
	}
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(raw, &rawMap); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if _, ok := rawMap["kforge"]; ok {
		var wrapper struct {
			Kforge Config `yaml:"kforge"`
		}
		if err := yaml.Unmarshal(raw, &wrapper); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		return wrapper.Kforge, nil
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Empty reports whether the configuration declares anything at all.
func (c Config) Empty() bool {
	return len(c.Connectors) == 0 && len(c.Stacks) == 0 &&
		!c.Conflict.Strict && len(c.Conflict.Levels) == 0
}

// MergeConfig overlays b onto a, preferring non-empty values from b. Stacks
// sharing a name are replaced wholesale by b's version; new stacks append.
func MergeConfig(a, b Config) Config {
	out := a
	if len(b.Connectors) > 0 {
		if out.Connectors == nil {
			out.Connectors = map[string]connector.Config{}
		}
		for name, cfg := range b.Connectors {
			out.Connectors[name] = cfg
		}
	}
	if b.Conflict.Strict {
		out.Conflict.Strict = true
	}
	if len(b.Conflict.Levels) > 0 {
		if out.Conflict.Levels == nil {
			out.Conflict.Levels = map[string]string{}
		}
		for level, strategy := range b.Conflict.Levels {
			out.Conflict.Levels[level] = strategy
		}
	}
	for _, stack := range b.Stacks {
		replaced := false
		for i, existing := range out.Stacks {
			if existing.Name == stack.Name {
				out.Stacks[i] = stack
				replaced = true
				break
			}
		}
		if !replaced {
			out.Stacks = append(out.Stacks, stack)
		}
	}
	return out
}

// ToConflictConfig normalizes the configured level and strategy names into the
// orchestrator's form. Unknown names fail here so a typo never silently falls
// back to a default strategy.
func (c ConflictConfig) ToConflictConfig() (orchestrator.ConflictConfig, error) {
	out := orchestrator.ConflictConfig{Strict: c.Strict}
	for rawLevel, rawStrategy := range c.Levels {
		level, err := orchestrator.ParseLevel(rawLevel)
		if err != nil {
			return orchestrator.ConflictConfig{}, err
		}
		strategy, err := orchestrator.ParseStrategy(rawStrategy)
		if err != nil {
			return orchestrator.ConflictConfig{}, fmt.Errorf("conflict level %s: %w", level, err)
		}
		switch level {
		case orchestrator.LevelIntraProvider:
			out.IntraProvider = strategy
		case orchestrator.LevelCrossProvider:
			out.CrossProvider = strategy
		case orchestrator.LevelCrossManager:
			out.CrossManager = strategy
		}
	}
	return out, nil
}

// Validate checks structural requirements that do not need any I/O. The
// conflict strategy matrix is checked by the orchestrator at build time.
func (c Config) Validate() error {
	if _, err := c.Conflict.ToConflictConfig(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, stack := range c.Stacks {
		if stack.Name == "" {
			return fmt.Errorf("every stack needs a name")
		}
		if seen[stack.Name] {
			return fmt.Errorf("stack %q is declared twice", stack.Name)
		}
		seen[stack.Name] = true
		for _, name := range stack.Connectors {
			if _, ok := c.Connectors[name]; !ok {
				return fmt.Errorf("stack %q references unknown connector %q", stack.Name, name)
			}
		}
		for _, res := range stack.Resources {
			if res.Name == "" {
				return fmt.Errorf("stack %q has a resource without a name", stack.Name)
			}
			if res.Template != nil && res.File != "" {
				return fmt.Errorf("stack %q resource %q sets both template and file", stack.Name, res.Name)
			}
			if res.Template == nil && res.File == "" {
				return fmt.Errorf("stack %q resource %q needs a template or a file", stack.Name, res.Name)
			}
		}
		for _, inj := range stack.Injections {
			if inj.Secret == "" || inj.Resource == "" {
				return fmt.Errorf("stack %q has an injection without a secret or resource", stack.Name)
			}
		}
	}
	return nil
}
