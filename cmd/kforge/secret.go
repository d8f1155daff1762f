// File: cmd/kforge/secret.go
// Brief: CLI command wiring and implementation for 'secret validate' and 'secret apply'.

package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSecretCommand(configPath, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "secret",
		Short:         "Inspect and resolve the configured secrets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newSecretValidateCommand(configPath, logLevel),
		newSecretApplyCommand(configPath, logLevel),
	)
	return cmd
}

func newSecretValidateCommand(configPath, logLevel *string) *cobra.Command {
	var stackFilter []string
	cmd := &cobra.Command{
		Use:           "validate",
		Short:         "Check that every declared secret resolves through its connector",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(ctx, *configPath, *logLevel, stackFilter)
			if err != nil {
				return err
			}
			if err := p.orch.Validate(ctx); err != nil {
				return err
			}
			total := 0
			for _, stack := range p.stacks {
				total += len(stack.Secrets)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d secrets across %d stacks resolve\n",
				color.GreenString("OK:"), total, len(p.stacks))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&stackFilter, "stack", nil, "Validate only the named stacks (repeatable)")
	return cmd
}

func newSecretApplyCommand(configPath, logLevel *string) *cobra.Command {
	var stackFilter []string
	cmd := &cobra.Command{
		Use:           "apply",
		Short:         "Resolve and reconcile every secret, then print the resulting effects",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(ctx, *configPath, *logLevel, stackFilter)
			if err != nil {
				return err
			}
			effects, err := p.orch.Apply(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, eff := range effects {
				keys := dataKeys(eff.Value)
				fmt.Fprintf(out, "%s %s (provider %s, manager %s, keys: %s)\n",
					color.CyanString(eff.Type), eff.Identifier, eff.ProviderName, eff.Manager, keys)
			}
			fmt.Fprintf(out, "%s %d effects\n", color.GreenString("Applied:"), len(effects))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&stackFilter, "stack", nil, "Apply only the named stacks (repeatable)")
	return cmd
}

func dataKeys(value map[string]any) string {
	data, ok := value["data"].(map[string]any)
	if !ok || len(data) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	joined := ""
	for i, key := range keys {
		if i > 0 {
			joined += ", "
		}
		joined += key
	}
	return joined
}
