package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptforge/promptforge/forge/config"
	"github.com/promptforge/promptforge/forge/convstate"
	"github.com/promptforge/promptforge/forge/prompting"
)

func newRenderCmd() *cobra.Command {
	var (
		templateFile string
		budget       int
	)

	cmd := &cobra.Command{
		Use:   "render <snapshot.json>",
		Short: "Assemble the instruction prompt for a conversation snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			state, err := convstate.ReadSnapshot(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}

			profile := prompting.Profile{ContextPolicy: cfg.PolicyInput()}
			if budget > 0 {
				profile.ContextBudget = &budget
			}
			if templateFile != "" {
				template, err := readTemplate(templateFile)
				if err != nil {
					return err
				}
				profile.RuntimeTemplate = template
			}

			assembler := prompting.NewContextAssembler()
			if cfg.Prompting.RawKeepLast > 0 {
				assembler.RawKeepLast = cfg.Prompting.RawKeepLast
			}
			builder := prompting.NewInstructionBuilderWith(assembler, nil)

			prompt := builder.Build(state, profile, nil)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return err
		},
	}

	cmd.Flags().StringVar(&templateFile, "template", "", "file holding a runtime template; overrides fallback sections")
	cmd.Flags().IntVar(&budget, "budget", 0, "total character budget; overrides the configured one")

	return cmd
}
