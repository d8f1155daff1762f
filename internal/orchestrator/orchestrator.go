// Package orchestrator collects every reachable secret manager, resolves
// values, prepares effects, and reconciles colliding effects at three
// widening granularities.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/example/kforge/internal/manager"
	"github.com/example/kforge/internal/provider"
)

// Effect is one prepared effect annotated with its origin, the unit the
// merge engine works on.
type Effect struct {
	provider.PreparedEffect
	Scope      string
	Manager    string
	Identifier string
	// Owner is the provider that prepared the effect; autoMerge delegates
	// to it.
	Owner provider.Provider
}

type entry struct {
	scope string
	mgr   *manager.SecretManager
}

// Orchestrator runs the collect → validate → prepare → merge pipeline.
type Orchestrator struct {
	entries  []entry
	conflict ConflictConfig
	log      logr.Logger
}

// New creates an orchestrator with the given conflict configuration.
func New(conflict ConflictConfig, log logr.Logger) *Orchestrator {
	return &Orchestrator{conflict: conflict, log: log}
}

// Register adds a manager under a scope (typically the stack name). Managers
// are processed in registration order.
func (o *Orchestrator) Register(scope string, m *manager.SecretManager) {
	o.entries = append(o.entries, entry{scope: scope, mgr: m})
}

// Validate checks the conflict configuration, then resolves every declared
// secret's connector and forces a load and a get. The first failure is
// returned and no effect is produced.
func (o *Orchestrator) Validate(ctx context.Context) error {
	if err := o.conflict.Validate(); err != nil {
		return err
	}
	for _, e := range o.entries {
		if err := e.mgr.Validate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Apply runs the full pipeline and returns the flat final effect list:
// collect → validate → prepare-effects → merge(intraProvider) →
// merge(crossProvider) → merge(crossManager).
func (o *Orchestrator) Apply(ctx context.Context) ([]Effect, error) {
	if err := o.Validate(ctx); err != nil {
		return nil, err
	}

	var effects []Effect
	for _, e := range o.entries {
		prepared, err := e.mgr.Prepare(ctx)
		if err != nil {
			return nil, err
		}
		for _, pe := range prepared {
			owner, err := e.mgr.ResolveProviderFor(pe.SecretName)
			if err != nil {
				return nil, err
			}
			effects = append(effects, Effect{
				PreparedEffect: pe,
				Scope:          e.scope,
				Manager:        e.mgr.Name(),
				Identifier:     owner.GetEffectIdentifier(pe),
				Owner:          owner,
			})
		}
	}

	merged, err := o.mergeLevel(effects, LevelIntraProvider, func(e Effect) string {
		return e.Scope + "\x00" + e.Manager + "\x00" + e.ProviderName + "\x00" + e.Identifier
	})
	if err != nil {
		return nil, err
	}
	merged, err = o.mergeLevel(merged, LevelCrossProvider, func(e Effect) string {
		return e.Scope + "\x00" + e.Manager + "\x00" + e.Identifier
	})
	if err != nil {
		return nil, err
	}
	merged, err = o.mergeLevel(merged, LevelCrossManager, func(e Effect) string {
		return e.Identifier
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// mergeLevel folds effects sharing a level key according to the level's
// strategy. Effects keep first-seen position; overwrite replaces the kept
// effect with the most recent one.
func (o *Orchestrator) mergeLevel(effects []Effect, level Level, keyFn func(Effect) string) ([]Effect, error) {
	strategy := o.conflict.StrategyFor(level)
	var order []string
	kept := map[string]Effect{}
	for _, eff := range effects {
		key := keyFn(eff)
		existing, ok := kept[key]
		if !ok {
			order = append(order, key)
			kept[key] = eff
			continue
		}
		switch strategy {
		case StrategyError:
			return nil, &ConflictError{Level: level, Identifier: eff.Identifier}
		case StrategyOverwrite:
			o.log.Info(fmt.Sprintf("[conflict:overwrite:%s] dropping %s in favor of %s",
				level, provider.Describe(existing.PreparedEffect), provider.Describe(eff.PreparedEffect)),
				"identifier", eff.Identifier)
			effCopy := eff
			kept[key] = effCopy
		case StrategyAutoMerge:
			mergedEff, err := o.autoMerge(existing, eff, level)
			if err != nil {
				return nil, err
			}
			kept[key] = mergedEff
		default:
			return nil, fmt.Errorf("conflict level %s has unknown strategy %q", level, strategy)
		}
	}
	out := make([]Effect, 0, len(order))
	for _, key := range order {
		out = append(out, kept[key])
	}
	return out, nil
}

// autoMerge delegates to the owning provider's MergeSecrets. Effects owned by
// different providers cannot be auto-merged and fail like the error strategy.
func (o *Orchestrator) autoMerge(existing, incoming Effect, level Level) (Effect, error) {
	if existing.Owner == nil || incoming.Owner == nil || existing.ProviderName != incoming.ProviderName {
		return Effect{}, fmt.Errorf("[conflict:error:%s] cannot auto-merge identifier %q across different providers (%q, %q)",
			level, incoming.Identifier, existing.ProviderName, incoming.ProviderName)
	}
	merged, err := existing.Owner.MergeSecrets([]provider.PreparedEffect{existing.PreparedEffect, incoming.PreparedEffect})
	if err != nil {
		return Effect{}, fmt.Errorf("[conflict:autoMerge:%s] identifier %q: %w", level, incoming.Identifier, err)
	}
	if len(merged) != 1 {
		return Effect{}, fmt.Errorf("[conflict:autoMerge:%s] identifier %q: merge produced %d effects", level, incoming.Identifier, len(merged))
	}
	out := existing
	out.PreparedEffect = merged[0]
	return out, nil
}
