package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "forgectl",
		Short:         "Assemble and inspect agent prompts from conversation snapshots",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("config", "", "path to config file")

	rootCmd.AddCommand(
		newRenderCmd(),
		newInspectCmd(),
	)

	return rootCmd
}
