package provider

import "strings"

// StrategyKind names an injection mechanism.
type StrategyKind string

const (
	StrategyEnv             StrategyKind = "env"
	StrategyEnvFrom         StrategyKind = "envFrom"
	StrategyAnnotation      StrategyKind = "annotation"
	StrategyImagePullSecret StrategyKind = "imagePullSecret"
	StrategyVolume          StrategyKind = "volume"
)

// Strategy selects how a secret value reaches its target resource.
type Strategy struct {
	Kind StrategyKind
	// ContainerIndex picks the container for env/envFrom/volume paths;
	// nil means container 0.
	ContainerIndex *int
	// TargetPath overrides the kind's default path when set.
	TargetPath string
	// Key selects the data key for env injections.
	Key string
	// Prefix applies to envFrom injections; empty means no prefix.
	Prefix string
	// MountPath applies to volume injections.
	MountPath string
}

func (s Strategy) containerIndex() int {
	if s.ContainerIndex == nil {
		return 0
	}
	return *s.ContainerIndex
}

// effectiveKind returns the injection's strategy kind, inferring it from the
// target path when the metadata does not carry one. A path mentioning envFrom
// is an envFrom injection; anything else defaults to env.
func effectiveKind(inj Injection) StrategyKind {
	if inj.Meta.Strategy.Kind != "" {
		return inj.Meta.Strategy.Kind
	}
	if strings.Contains(inj.Path, "envFrom") {
		return StrategyEnvFrom
	}
	return StrategyEnv
}
