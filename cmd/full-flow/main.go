// Command full-flow rehearses the entire pipeline against a single test
// recipient: import remote signups (degraded mode — a transport failure is
// a warning, not an abort), merge them into the local list, fetch the
// day's challenge, and send one email.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"

	"advent-mailer/challenge"
	"advent-mailer/config"
	"advent-mailer/email"
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
		logger.Error("Full flow failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	day := flag.Int("day", 0, "challenge day number")
	testEmail := flag.String("email", "", "test recipient (defaults to TEST_EMAIL)")
	flag.Parse()

	cfg := config.Load(logger)

	if *day < 1 || *day > cfg.MaxDay {
		return fmt.Errorf("invalid day %d: must be between 1 and %d", *day, cfg.MaxDay)
	}

	recipient := *testEmail
	if recipient == "" {
		recipient = cfg.TestEmail
	}
	normalized, err := advent.ValidateEmail(recipient)
	if err != nil {
		return fmt.Errorf("no valid test recipient: set --email or TEST_EMAIL")
	}

	ctx := context.Background()

	// Step 1: import remote signups. Degraded mode on failure: the run
	// continues with whatever the local list already holds.
	remote := fetchRemoteDegraded(ctx, cfg, logger)

	// Step 2: merge into the local list.
	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	existing, err := st.Load(ctx)
	if err != nil {
		return err
	}

	merged, newCount := store.MergeSignups(existing, remote)
	if newCount > 0 {
		if err := st.Save(ctx, merged); err != nil {
			return err
		}
	}
	stats := store.Summarize(merged)
	logger.Info("List reconciled",
		"new", newCount,
		"total", stats.Total,
		"subscribed", stats.Subscribed)

	// Step 3: fetch and parse the challenge.
	fetcher := challenge.New(&http.Client{Timeout: 30 * time.Second}, cfg.Challenge, logger)
	markdown, err := fetcher.Fetch(ctx, *day)
	if err != nil {
		return err
	}
	ch := challenge.Parse(markdown, *day)

	// Step 4: send to the single test recipient.
	msg := email.Compose(ch, email.Template{
		SiteURL:        cfg.SiteURL,
		UnsubscribeURL: cfg.UnsubscribeURL,
	})

	provider, err := selectProvider(cfg, logger)
	if err != nil {
		return err
	}

	dispatcher := email.NewDispatcher(provider, cfg.SendDelay, false, logger)
	result := dispatcher.SendAll(ctx, msg, []string{normalized})
	if result.Failed > 0 {
		return fmt.Errorf("test send to %s failed", normalized)
	}

	fmt.Printf("Full flow complete: %d new signup(s) merged, test email sent to %s\n", newCount, normalized)
	return nil
}

func fetchRemoteDegraded(ctx context.Context, cfg config.Config, logger *slog.Logger) []advent.Signup {
	source, cleanup, err := selectSource(ctx, cfg, logger)
	if err != nil {
		logger.Warn("Remote signup source unavailable, continuing with local list", "error", err)
		return nil
	}
	defer cleanup()

	remote, err := source.FetchRemote(ctx)
	if err != nil {
		logger.Warn("Remote signup fetch failed, continuing with local list", "error", err)
		return nil
	}
	return remote
}

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

func selectProvider(cfg config.Config, logger *slog.Logger) (email.Provider, error) {
	switch {
	case cfg.SendGridAPIKey != "":
		return email.NewSendGridProvider(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName, logger), nil
	case cfg.SMTPAddr != "":
		return email.NewSMTPProvider(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPass, cfg.FromEmail, cfg.FromName, logger)
	default:
		logger.Warn("No email provider configured, using mock")
		return email.NewMockProvider(logger), nil
	}
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
