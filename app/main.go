package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"bookscout/app/books"
	"bookscout/app/cfg"
	"bookscout/app/feed"
	"bookscout/app/history"
	"bookscout/app/notify"
	"bookscout/app/pipeline"
	"bookscout/app/queue"
	"bookscout/app/sources"
	"bookscout/app/urlguard"
)

func main() {
	os.Exit(run())
}

func run() int {
	appConfig, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}
	if appConfig == nil {
		// Help was shown, exit gracefully
		return 0
	}

	logLevel := slog.LevelInfo
	if appConfig.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting bookscout run", "version", appConfig.Version, "dry_run", appConfig.DryRun)

	if err := os.MkdirAll(appConfig.DataDir, 0o755); err != nil {
		slog.Error("Failed to create data directory", "dir", appConfig.DataDir, "error", err)
		return 1
	}

	// One run at a time: the queue and catalog have a single-writer
	// contract, so a second invocation backs off instead of racing.
	runLock := flock.New(filepath.Join(appConfig.DataDir, "bookscout.lock"))
	locked, err := runLock.TryLock()
	if err != nil {
		slog.Error("Failed to acquire run lock", "error", err)
		return 1
	}
	if !locked {
		slog.Info("Another run is in progress, exiting")
		return 0
	}
	defer runLock.Unlock()

	policy := urlguard.DefaultPolicy()
	if appConfig.GuardPolicyFile != "" {
		policy, err = urlguard.LoadPolicy(appConfig.GuardPolicyFile)
		if err != nil {
			slog.Error("Failed to load guard policy", "file", appConfig.GuardPolicyFile, "error", err)
			return 1
		}
		slog.Info("Guard policy loaded", "file", appConfig.GuardPolicyFile, "allowed_domains", len(policy.AllowedDomains))
	}

	guard := urlguard.NewGuard(policy)
	fetcher := urlguard.NewFetcher(guard, &http.Client{Timeout: urlguard.FetchTimeout}, appConfig.UserAgent)

	historyStore, err := history.Open(appConfig.DataDir)
	if err != nil {
		slog.Error("Failed to open fetch history", "error", err)
		return 1
	}
	defer historyStore.Close()

	orchestrator := &pipeline.Orchestrator{
		Reader:      feed.NewReader(fetcher, appConfig.FeedURL),
		Queue:       queue.NewStore(appConfig.DataDir),
		Sources:     sources.NewResolver(fetcher),
		Books:       books.NewResolver(fetcher),
		Guard:       guard,
		History:     historyStore,
		Notifier:    notify.NewService(appConfig.NtfyTopic, appConfig.UserAgent),
		CatalogPath: appConfig.CatalogFile,
		Concurrency: appConfig.EpisodeConcurrency,
		Lookback:    time.Duration(appConfig.LookbackHours) * time.Hour,
		DryRun:      appConfig.DryRun,
	}

	// Signal-aware context with a hard cap on total run duration.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(appConfig.RunTimeoutMinutes)*time.Minute)
	defer cancel()

	if err := historyStore.Prune(ctx, 30*24*time.Hour); err != nil {
		slog.Warn("Failed to prune fetch history", "error", err)
	}

	summary, err := orchestrator.Run(ctx)
	if err != nil {
		slog.Error("Run failed", "error", err)
		return 1
	}

	slog.Info("Bookscout run finished",
		"added", len(summary.Added),
		"requeued", summary.Requeued,
		"abandoned", summary.Abandoned)

	return 0
}
