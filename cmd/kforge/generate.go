// File: cmd/kforge/generate.go
// Brief: CLI command wiring and implementation for 'generate'.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/kforge/internal/composer"
	"github.com/example/kforge/internal/injection"
	"github.com/example/kforge/internal/provider"
	"github.com/example/kforge/internal/stackcfg"
)

func newGenerateCommand(configPath, logLevel *string) *cobra.Command {
	var stackFilter []string
	var resourceFilter []string
	var outputPath string
	cmd := &cobra.Command{
		Use:           "generate",
		Short:         "Resolve secrets and render the composed manifests",
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

			c := composer.New()
			var records []injection.Record
			for _, stack := range p.stacks {
				filtered := filterStack(stack, resourceFilter)
				if err := stackcfg.AddResources(c, filtered, p.baseDir); err != nil {
					return err
				}
				recs, err := stackcfg.Records(filtered, p.managers[stack.Name])
				if err != nil {
					return err
				}
				records = append(records, recs...)
			}
			// Secret manifests join the output only on a full render; a
			// resource filter selects declared resources exclusively.
			if len(resourceFilter) == 0 {
				for _, eff := range effects {
					if eff.Type != provider.EffectTypeManifest {
						continue
					}
					if err := c.Add("secret:"+eff.Identifier, composer.KindInstance, eff.Value); err != nil {
						return err
					}
				}
			}
			if err := injection.Apply(records, c); err != nil {
				return err
			}

			docs, err := c.Build()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := composer.Render(out, docs); err != nil {
				return err
			}
			p.log.V(1).Info("rendered manifests", "documents", len(docs), "effects", len(effects))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&stackFilter, "stack", nil, "Render only the named stacks (repeatable)")
	cmd.Flags().StringSliceVar(&resourceFilter, "resource", nil, "Render only the named resources (repeatable)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the rendered YAML to a file instead of stdout")
	return cmd
}

// filterStack restricts a stack to the named resources, dropping injections
// that target anything excluded.
func filterStack(stack stackcfg.StackConfig, resourceFilter []string) stackcfg.StackConfig {
	if len(resourceFilter) == 0 {
		return stack
	}
	wanted := map[string]bool{}
	for _, name := range resourceFilter {
		wanted[name] = true
	}
	out := stack
	out.Resources = nil
	out.Injections = nil
	for _, res := range stack.Resources {
		if wanted[res.Name] {
			out.Resources = append(out.Resources, res)
		}
	}
	for _, inj := range stack.Injections {
		if wanted[inj.Resource] {
			out.Injections = append(out.Injections, inj)
		}
	}
	return out
}
