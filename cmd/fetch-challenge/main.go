// Command fetch-challenge fetches and parses a day's challenge markdown,
// printing the extracted fields. Useful for previewing what an email run
// would contain.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"advent-mailer/challenge"
	"advent-mailer/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	day := flag.Int("day", 0, "challenge day number")
	flag.Parse()

	cfg := config.Load(logger)

	if *day < 1 || *day > cfg.MaxDay {
		fmt.Fprintf(os.Stderr, "invalid day %d: must be between 1 and %d\n", *day, cfg.MaxDay)
		os.Exit(1)
	}

	ctx := context.Background()
	fetcher := challenge.New(&http.Client{Timeout: 30 * time.Second}, cfg.Challenge, logger)

	markdown, err := fetcher.Fetch(ctx, *day)
	if err != nil {
		logger.Error("Failed to fetch challenge", "day", *day, "error", err)
		os.Exit(1)
	}

	ch := challenge.Parse(markdown, *day)

	fmt.Printf("Title:    %s\n", ch.Title)
	fmt.Printf("Greeting: %s\n", ch.Greeting)
	fmt.Printf("\nDescription:\n%s\n", ch.Description)
	fmt.Printf("\nFull markdown: %d characters\n", len(ch.RawMarkdown))
}
