package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/profilescout/profilescout/internal/chat"
	"github.com/profilescout/profilescout/internal/config"
	"github.com/profilescout/profilescout/internal/engine"
	"github.com/profilescout/profilescout/internal/ingest"
	"github.com/profilescout/profilescout/internal/jobs"
	"github.com/profilescout/profilescout/internal/llm"
	"github.com/profilescout/profilescout/internal/metrics"
	"github.com/profilescout/profilescout/internal/profile"
	"github.com/profilescout/profilescout/internal/reports"
	"github.com/profilescout/profilescout/internal/similarity"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot until interrupted",
	Long: `Starts event ingestion, the conversation engine, and the job
dispatcher, and serves until SIGINT/SIGTERM. On shutdown a final
performance report is written and archived.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return runBot(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if verbose {
		log.Printf("config: ingest=%s provider=%s model=%s report-dir=%s data-dir=%s",
			cfg.IngestMode, cfg.Provider, cfg.Model, cfg.ReportDir, cfg.DataDir)
	}

	tracker := metrics.NewTracker()

	client := chat.NewSlackClient(cfg.BotToken, tracker)
	identity, err := client.AuthenticatedIdentity(ctx)
	if err != nil {
		return fmt.Errorf("authenticating with chat platform: %w", err)
	}
	log.Printf("authenticated as %s (%s)", identity.UserName, identity.UserID)

	source := profile.NewClient(cfg.ProfileAPIKey, cfg.ProfileAPIHost, tracker)

	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return err
	}
	if cfg.RateLimitRPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RateLimitRPM)
	}

	pipeline := similarity.NewPipeline(provider, cfg.Model, tracker)
	dispatcher := jobs.NewDispatcher(client, source, pipeline, tracker)
	eng := engine.New(client, dispatcher)

	filter := ingest.NewFilter(identity.UserID)
	var eventSource ingest.Source
	switch cfg.IngestMode {
	case config.IngestSocket:
		eventSource = ingest.NewSocketSource(cfg.AppToken, filter, eng)
	case config.IngestWebhook:
		eventSource = ingest.NewWebhookServer(cfg.WebhookPort, cfg.SigningSecret, filter, eng)
	default:
		interval := time.Duration(cfg.PollIntervalSec) * time.Second
		eventSource = ingest.NewPoller(client, filter, eng, interval, cfg.HistoryLimit)
	}

	sink, err := metrics.NewFileSink(cfg.ReportDir)
	if err != nil {
		return err
	}
	store, err := reports.Open(filepath.Join(cfg.DataDir, "reports.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.ReportIntervalMin > 0 {
		go reportLoop(ctx, tracker, sink, store, time.Duration(cfg.ReportIntervalMin)*time.Minute)
	}

	log.Printf("ingesting events via %s", cfg.IngestMode)
	err = eventSource.Run(ctx)
	if err != nil && err != context.Canceled {
		return err
	}

	log.Println("shutting down, waiting for in-flight jobs")
	dispatcher.Wait()

	writeReport(tracker, sink, store)
	return nil
}

func reportLoop(ctx context.Context, tracker *metrics.Tracker, sink *metrics.FileSink, store *reports.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeReport(tracker, sink, store)
		}
	}
}

func writeReport(tracker *metrics.Tracker, sink *metrics.FileSink, store *reports.Store) {
	report := tracker.Report()
	if report.Summary.TotalCalls == 0 {
		return
	}
	path, err := sink.WriteReport(report)
	if err != nil {
		log.Printf("writing performance report: %v", err)
	} else {
		log.Printf("performance report written to %s", path)
	}
	if err := store.Save(report); err != nil {
		log.Printf("archiving performance report: %v", err)
	}
}
