// Command query-signups pulls the signup table from the remote site,
// reconciles it into the local subscriber list, and optionally commits the
// updated list to the version-control remote.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	gcs "cloud.google.com/go/storage"

	"advent-mailer/config"
	"advent-mailer/gitsync"
	"advent-mailer/pkg/advent"
	"advent-mailer/signups"
	"advent-mailer/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Signup import failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	commit := flag.Bool("commit", false, "commit and push the updated list")
	flag.Parse()

	cfg := config.Load(logger)
	ctx := context.Background()

	source, closeSource, err := selectSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	remote, err := source.FetchRemote(ctx)
	if err != nil {
		return fmt.Errorf("fetch remote signups: %w", err)
	}

	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	existing, err := st.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info("Existing list loaded", "count", len(existing))

	known := make(map[string]bool, len(existing))
	for _, s := range existing {
		known[advent.NormalizeEmail(s.Email)] = true
	}

	merged, newCount := store.MergeSignups(existing, remote)
	if newCount == 0 {
		fmt.Println("No new signups found. Email list is up to date.")
		printStats(merged)
		return nil
	}

	fmt.Printf("Found %d new signup(s):\n", newCount)
	for _, s := range merged {
		if !known[advent.NormalizeEmail(s.Email)] {
			fmt.Printf("  - %s (id=%d)\n", s.Email, s.ID)
		}
	}

	if err := st.Save(ctx, merged); err != nil {
		return err
	}

	if *commit {
		syncer := gitsync.New(".", logger)
		message := fmt.Sprintf("Add %d new signup(s) to email list", newCount)
		if err := syncer.CommitAndPush(ctx, cfg.EmailListPath, message); err != nil {
			// Manual commit is always possible; don't fail the import.
			logger.Warn("Failed to commit/push changes", "error", err)
		}
	} else {
		fmt.Println("Run with --commit to push the updated list")
	}

	printStats(merged)
	return nil
}

func printStats(list []advent.Signup) {
	stats := store.Summarize(list)
	fmt.Printf("Total signups: %d\n", stats.Total)
	fmt.Printf("Subscribed:    %d\n", stats.Subscribed)
	fmt.Printf("Unsubscribed:  %d\n", stats.Unsubscribed)
}

// selectSource picks the direct database connection when a DSN is
// configured, falling back to the Railway SSH proxy.
func selectSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (signups.Source, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := signups.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close database", "error", err)
			}
		}
		return signups.NewPostgresSource(db, logger), cleanup, nil
	}

	if cfg.Railway.Token != "" {
		return signups.NewRailwaySource(cfg.Railway, logger), func() {}, nil
	}

	return nil, nil, signups.ErrNoCredentials
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, func(), error) {
	if cfg.StorageBucket == "" {
		return store.New(nil, "", "", cfg.EmailListPath, logger), func() {}, nil
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize storage client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close storage client", "error", err)
		}
	}
	return store.New(client, cfg.StorageBucket, cfg.StorageObject, "", logger), cleanup, nil
}
