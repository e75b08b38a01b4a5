// Command add-email maintains the subscriber list: add addresses, list the
// current entries, remove addresses, or import a list in the legacy wrapper
// format.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	gcs "cloud.google.com/go/storage"

	"advent-mailer/config"
	"advent-mailer/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	list := flag.Bool("list", false, "list all subscribers")
	remove := flag.Bool("remove", false, "remove the given emails")
	importLegacy := flag.Bool("import-legacy", false, "convert a legacy wrapper-format list in place")
	backups := flag.Bool("backups", false, "list stored snapshots of the subscriber list")
	flag.Parse()

	cfg := config.Load(logger)
	ctx := context.Background()

	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	switch {
	case *list:
		err = listEmails(ctx, st)
	case *importLegacy:
		err = runImportLegacy(ctx, st)
	case *backups:
		err = listBackups(ctx, st)
	case *remove:
		err = removeEmails(ctx, st, flag.Args())
	default:
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "usage: add-email [emails...] | --list | --remove emails... | --import-legacy | --backups")
			os.Exit(1)
		}
		err = addEmails(ctx, st, flag.Args())
	}

	if err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
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

func addEmails(ctx context.Context, st *store.Store, candidates []string) error {
	signups, err := st.Load(ctx)
	if err != nil {
		return err
	}

	merged, result := store.AddEmails(signups, candidates)
	if err := st.Save(ctx, merged); err != nil {
		return err
	}

	fmt.Printf("Added: %d\n", len(result.Added))
	for _, e := range result.Added {
		fmt.Printf("  - %s\n", e)
	}
	if len(result.Skipped) > 0 {
		fmt.Printf("Skipped (already exists): %d\n", len(result.Skipped))
		for _, e := range result.Skipped {
			fmt.Printf("  - %s\n", e)
		}
	}
	if len(result.Invalid) > 0 {
		fmt.Printf("Invalid: %d\n", len(result.Invalid))
		for _, e := range result.Invalid {
			fmt.Printf("  - %s\n", e)
		}
	}
	fmt.Printf("Total subscribers: %d\n", len(merged))
	return nil
}

func removeEmails(ctx context.Context, st *store.Store, targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("no emails to remove")
	}

	signups, err := st.Load(ctx)
	if err != nil {
		return err
	}

	remaining, removed := store.RemoveEmails(signups, targets)
	if err := st.Save(ctx, remaining); err != nil {
		return err
	}

	fmt.Printf("Removed %d email(s)\n", removed)
	fmt.Printf("Total subscribers: %d\n", len(remaining))
	return nil
}

func listEmails(ctx context.Context, st *store.Store) error {
	signups, err := st.Load(ctx)
	if err != nil {
		return err
	}

	stats := store.Summarize(signups)
	fmt.Printf("Total: %d (subscribed: %d, unsubscribed: %d)\n\n", stats.Total, stats.Subscribed, stats.Unsubscribed)
	for i, s := range signups {
		state := "unsubscribed"
		if s.IsSubscribed() {
			state = "subscribed"
		}
		fmt.Printf("%3d. %s (id=%d, %s, since %s)\n", i+1, s.Email, s.ID, state, s.CreatedAt)
	}
	return nil
}

func listBackups(ctx context.Context, st *store.Store) error {
	names, err := st.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No snapshots found")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runImportLegacy(ctx context.Context, st *store.Store) error {
	signups, err := st.ImportLegacy(ctx)
	if err != nil {
		return err
	}
	if err := st.Save(ctx, signups); err != nil {
		return err
	}
	fmt.Printf("Imported %d subscriber(s) from legacy list\n", len(signups))
	return nil
}
