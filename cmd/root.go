package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "profilescout",
	Short: "Chat bot that finds and ranks similar professional profiles",
	Long: `Profilescout is a chat workspace bot. It collects a profile URL
through a short direct-message conversation, then either compares it
against another profile or searches the workspace directory for the
most similar people, scoring candidates with a generative-text backend.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".profilescout.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
