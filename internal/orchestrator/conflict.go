package orchestrator

import (
	"fmt"
	"strings"
)

// Level is the granularity at which colliding effect identifiers are
// reconciled.
type Level string

const (
	LevelIntraProvider Level = "intraProvider"
	LevelCrossProvider Level = "crossProvider"
	LevelCrossManager  Level = "crossManager"
)

// Strategy is the policy applied when two effects collide at a level.
type Strategy string

const (
	StrategyError     Strategy = "error"
	StrategyOverwrite Strategy = "overwrite"
	StrategyAutoMerge Strategy = "autoMerge"
)

// ConflictConfig selects a strategy per merge level. Zero-value fields take
// the level's default: autoMerge within a provider, error everywhere else.
type ConflictConfig struct {
	IntraProvider Strategy
	CrossProvider Strategy
	CrossManager  Strategy
	// Strict forces every level to error. Configuring a more permissive
	// strategy while Strict is set is a configuration error.
	Strict bool
}

// ParseLevel normalizes a configured level name. Historical spellings from
// the older schemes are accepted as deprecated aliases.
func ParseLevel(raw string) (Level, error) {
	switch strings.TrimSpace(raw) {
	case "intraProvider", "provider":
		return LevelIntraProvider, nil
	case "crossProvider", "manager":
		return LevelCrossProvider, nil
	case "crossManager", "crossStack", "stack":
		return LevelCrossManager, nil
	default:
		return "", fmt.Errorf("unknown conflict level %q (expected intraProvider, crossProvider, or crossManager)", raw)
	}
}

// ParseStrategy normalizes a configured strategy name.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.TrimSpace(raw) {
	case "", string(StrategyError), string(StrategyOverwrite), string(StrategyAutoMerge):
		return Strategy(strings.TrimSpace(raw)), nil
	default:
		return "", fmt.Errorf("unknown conflict strategy %q (expected error, overwrite, or autoMerge)", raw)
	}
}

func defaultStrategy(level Level) Strategy {
	if level == LevelIntraProvider {
		return StrategyAutoMerge
	}
	return StrategyError
}

func (c ConflictConfig) configured(level Level) Strategy {
	switch level {
	case LevelIntraProvider:
		return c.IntraProvider
	case LevelCrossProvider:
		return c.CrossProvider
	default:
		return c.CrossManager
	}
}

// StrategyFor resolves the effective strategy at a level.
func (c ConflictConfig) StrategyFor(level Level) Strategy {
	if c.Strict {
		return StrategyError
	}
	if configured := c.configured(level); configured != "" {
		return configured
	}
	return defaultStrategy(level)
}

// Validate rejects unknown strategies and strict-mode contradictions before
// any effect is produced.
func (c ConflictConfig) Validate() error {
	for _, level := range []Level{LevelIntraProvider, LevelCrossProvider, LevelCrossManager} {
		configured := c.configured(level)
		if _, err := ParseStrategy(string(configured)); err != nil {
			return fmt.Errorf("conflict level %s: %w", level, err)
		}
		if c.Strict && configured != "" && configured != StrategyError {
			return fmt.Errorf("[config:strictConflictMode] level %s is configured as %q but strict mode forces %q", level, configured, StrategyError)
		}
	}
	return nil
}

// ConflictError reports a duplicate identifier under the error strategy.
type ConflictError struct {
	Level      Level
	Identifier string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("[conflict:error:%s] duplicate effect identifier %q", e.Level, e.Identifier)
}
