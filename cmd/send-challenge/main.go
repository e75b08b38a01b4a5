// Command send-challenge fetches a day's challenge and emails it to every
// subscribed address on the list. --dry-run previews without sending;
// --email replaces the recipient list with a single test address.
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
	"advent-mailer/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Send failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	day := flag.Int("day", 0, "challenge day number")
	dryRun := flag.Bool("dry-run", false, "preview without sending")
	testEmail := flag.String("email", "", "send only to this address")
	flag.Parse()

	cfg := config.Load(logger)

	if *day < 1 || *day > cfg.MaxDay {
		return fmt.Errorf("invalid day %d: must be between 1 and %d", *day, cfg.MaxDay)
	}

	ctx := context.Background()

	recipients, err := loadRecipients(ctx, cfg, *testEmail, logger)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		fmt.Println("No subscribed emails found. Nothing to send.")
		return nil
	}

	fetcher := challenge.New(&http.Client{Timeout: 30 * time.Second}, cfg.Challenge, logger)
	markdown, err := fetcher.Fetch(ctx, *day)
	if err != nil {
		return err
	}
	ch := challenge.Parse(markdown, *day)
	logger.Info("Challenge content loaded", "day", *day, "title", ch.Title)

	msg := email.Compose(ch, email.Template{
		SiteURL:        cfg.SiteURL,
		UnsubscribeURL: cfg.UnsubscribeURL,
	})

	provider, err := selectProvider(cfg, *dryRun, logger)
	if err != nil {
		return err
	}

	dispatcher := email.NewDispatcher(provider, cfg.SendDelay, *dryRun, logger)
	result := dispatcher.SendAll(ctx, msg, recipients)

	fmt.Printf("Sent:   %d\n", result.Sent)
	fmt.Printf("Failed: %d\n", result.Failed)
	fmt.Printf("Total:  %d\n", result.Attempted)

	if !*dryRun && result.Sent == 0 && result.Failed > 0 {
		return fmt.Errorf("all %d sends failed", result.Failed)
	}
	return nil
}

func loadRecipients(ctx context.Context, cfg config.Config, testEmail string, logger *slog.Logger) ([]string, error) {
	if testEmail != "" {
		normalized, err := advent.ValidateEmail(testEmail)
		if err != nil {
			return nil, fmt.Errorf("invalid --email address %q: %w", testEmail, err)
		}
		logger.Info("Test send", "to", normalized)
		return []string{normalized}, nil
	}

	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	signups, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}

	stats := store.Summarize(signups)
	logger.Info("Subscriber list loaded",
		"total", stats.Total,
		"subscribed", stats.Subscribed,
		"unsubscribed", stats.Unsubscribed)

	return store.Subscribed(signups), nil
}

// selectProvider picks SendGrid when an API key is configured, then SMTP,
// then the mock. A dry run never needs real credentials.
func selectProvider(cfg config.Config, dryRun bool, logger *slog.Logger) (email.Provider, error) {
	switch {
	case dryRun:
		return email.NewMockProvider(logger), nil
	case cfg.SendGridAPIKey != "":
		return email.NewSendGridProvider(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName, logger), nil
	case cfg.SMTPAddr != "":
		return email.NewSMTPProvider(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPass, cfg.FromEmail, cfg.FromName, logger)
	default:
		return nil, fmt.Errorf("no email provider configured: set SENDGRID_API_KEY or SMTP_ADDR")
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
