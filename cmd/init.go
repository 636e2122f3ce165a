package cmd

import (
	"github.com/spf13/cobra"

	"github.com/profilescout/profilescout/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize profilescout configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the bot and generates a .profilescout.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
