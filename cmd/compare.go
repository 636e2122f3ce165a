package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/profilescout/profilescout/internal/config"
	"github.com/profilescout/profilescout/internal/llm"
	"github.com/profilescout/profilescout/internal/metrics"
	"github.com/profilescout/profilescout/internal/profile"
	"github.com/profilescout/profilescout/internal/progress"
	"github.com/profilescout/profilescout/internal/similarity"
)

var compareCmd = &cobra.Command{
	Use:   "compare <base-profile-url> <other-profile-url>",
	Short: "Compare two profiles from the command line",
	Long:  `Fetches both profiles and prints a similarity assessment without going through the chat flow.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.ProfileAPIKey == "" {
			return fmt.Errorf("profile_api_key is not configured; run `profilescout init` first")
		}

		ctx := cmd.Context()
		tracker := metrics.NewTracker()
		source := profile.NewClient(cfg.ProfileAPIKey, cfg.ProfileAPIHost, tracker)

		provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
		if err != nil {
			return err
		}
		pipeline := similarity.NewPipeline(provider, cfg.Model, tracker)

		reporter := progress.NewReporter()
		reporter.Start(3)

		reporter.Update(1, "Fetching base profile")
		base, err := source.FetchProfile(ctx, args[0])
		if err != nil {
			reporter.Finish()
			return fmt.Errorf("fetching %s: %w", args[0], err)
		}

		reporter.Update(2, "Fetching comparison profile")
		other, err := source.FetchProfile(ctx, args[1])
		if err != nil {
			reporter.Finish()
			return fmt.Errorf("fetching %s: %w", args[1], err)
		}

		reporter.Update(3, "Scoring similarity")
		res := pipeline.Compare(ctx, base, other)
		reporter.Finish()

		fmt.Printf("\n%s vs %s\n", base.Name, other.Name)
		fmt.Printf("Similarity Score: %d%%\n", res.Score)
		if res.Explanation != "" {
			fmt.Printf("Explanation: %s\n", res.Explanation)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}
