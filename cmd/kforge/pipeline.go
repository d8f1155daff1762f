// File: cmd/kforge/pipeline.go
// Brief: Shared assembly from a project config to built managers and an orchestrator.

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/example/kforge/internal/logging"
	"github.com/example/kforge/internal/manager"
	"github.com/example/kforge/internal/orchestrator"
	"github.com/example/kforge/internal/stackcfg"
)

// project is a loaded configuration with its stacks assembled into built
// managers and a registered orchestrator.
type project struct {
	cfg      stackcfg.Config
	baseDir  string
	stacks   []stackcfg.StackConfig
	managers map[string]*manager.SecretManager
	orch     *orchestrator.Orchestrator
	log      logr.Logger
}

// loadProject loads and validates the configuration, assembles every selected
// stack's manager, and registers them on an orchestrator in declaration order.
// An empty stackFilter selects every stack.
func loadProject(ctx context.Context, configPath, logLevel string, stackFilter []string) (*project, error) {
	log, err := logging.New(logLevel)
	if err != nil {
		return nil, err
	}
	cfg, err := stackcfg.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stacks, err := selectStacks(cfg.Stacks, stackFilter)
	if err != nil {
		return nil, err
	}
	conflict, err := cfg.Conflict.ToConflictConfig()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(configPath)
	p := &project{
		cfg:      cfg,
		baseDir:  baseDir,
		stacks:   stacks,
		managers: map[string]*manager.SecretManager{},
		orch:     orchestrator.New(conflict, log),
		log:      log,
	}
	for _, stack := range stacks {
		m, err := stackcfg.BuildManager(ctx, cfg, stack, baseDir)
		if err != nil {
			return nil, err
		}
		p.managers[stack.Name] = m
		p.orch.Register(stack.Name, m)
	}
	return p, nil
}

func selectStacks(stacks []stackcfg.StackConfig, filter []string) ([]stackcfg.StackConfig, error) {
	if len(stacks) == 0 {
		return nil, fmt.Errorf("the configuration declares no stacks")
	}
	if len(filter) == 0 {
		return stacks, nil
	}
	byName := map[string]stackcfg.StackConfig{}
	for _, stack := range stacks {
		byName[stack.Name] = stack
	}
	out := make([]stackcfg.StackConfig, 0, len(filter))
	for _, name := range filter {
		stack, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("stack %q is not declared in the configuration", name)
		}
		out = append(out, stack)
	}
	return out, nil
}
