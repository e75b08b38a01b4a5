// Package challenge handles fetching and parsing daily challenge markdown
// from the content repository on GitHub.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"advent-mailer/pkg/advent"
)

// Source describes where challenge markdown lives.
type Source struct {
	BaseURL    string // Raw-content host; defaults to GitHub's
	Owner      string // GitHub repository owner
	Repo       string // GitHub repository name
	Branch     string // Branch to read from
	PathFormat string // Filename pattern within challenges/, e.g. "day%d.md"
}

// NotFoundError indicates the challenge for a day does not exist yet
// (HTTP 404). It is never retried; callers surface it and halt.
type NotFoundError struct {
	Day int
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("challenge for day %d not found: %s", e.Day, e.URL)
}

// IsNotFound checks if an error is a missing-challenge error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Fetcher fetches and parses challenge markdown.
type Fetcher struct {
	client *http.Client
	source Source
	logger *slog.Logger
}

// New creates a new challenge fetcher.
func New(client *http.Client, source Source, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		source: source,
		logger: logger,
	}
}

// URL returns the raw-content URL for a day's challenge file.
func (f *Fetcher) URL(day int) string {
	base := f.source.BaseURL
	if base == "" {
		base = "https://raw.githubusercontent.com"
	}
	return fmt.Sprintf("%s/%s/%s/%s/challenges/%s",
		base, f.source.Owner, f.source.Repo, f.source.Branch,
		fmt.Sprintf(f.source.PathFormat, day))
}

// Fetch retrieves the raw markdown for a day. A 404 is surfaced as a
// *NotFoundError without retrying; transient transport failures are retried.
func (f *Fetcher) Fetch(ctx context.Context, day int) (string, error) {
	fetchURL := f.URL(day)
	var markdown string
	var notFound *NotFoundError

	err := retry.Do(
		func() error {
			f.logger.Info("HTTP request starting",
				"method", "GET",
				"url", fetchURL,
				"purpose", "fetch_challenge")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, http.NoBody)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			startTime := time.Now()
			resp, err := f.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				f.logger.Warn("HTTP request failed, will retry",
					"url", fetchURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					f.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode == http.StatusNotFound {
				f.logger.Warn("Challenge not published yet", "url", fetchURL, "day", day)
				notFound = &NotFoundError{Day: day, URL: fetchURL}
				return retry.Unrecoverable(notFound)
			}

			if resp.StatusCode != http.StatusOK {
				f.logger.Warn("HTTP request returned non-OK status, will retry", "status_code", resp.StatusCode)
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				f.logger.Warn("Failed to read response body, will retry", "error", err)
				return fmt.Errorf("read body: %w", err)
			}

			f.logger.Info("HTTP request completed",
				"url", fetchURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"content_length", len(body))

			markdown = string(body)
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("Retrying challenge fetch after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		if notFound != nil {
			return "", notFound
		}
		return "", fmt.Errorf("fetch day %d after retries: %w", day, err)
	}

	return markdown, nil
}

var (
	titleRe    = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	greetingRe = regexp.MustCompile(`(?m)^##\s+\*?\*?(.+?)\*?\*?\s*$`)
	// The story block sits between the greeting heading and the first
	// level-3 heading.
	storyRe = regexp.MustCompile(`(?s)##\s+\*?\*?Welcome[^\n]*\n+(.*?)\n###`)

	boldRe      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe    = regexp.MustCompile(`\*(.+?)\*`)
	linkRe      = regexp.MustCompile(`\[(.+?)\]\(.+?\)`)
	escBangRe   = regexp.MustCompile(`\\!`)
	backslashRe = regexp.MustCompile(`\\`)
)

// cleanMarkdown strips emphasis, link, and escape syntax to plain text.
func cleanMarkdown(text string) string {
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = escBangRe.ReplaceAllString(text, "!")
	text = backslashRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// fallbackDescription is used when no usable story block can be extracted.
func fallbackDescription(day int) string {
	return fmt.Sprintf("Your Day %d challenge is now available! Head to the site to see what's in store.", day)
}

// Parse extracts the title, greeting, and description from challenge
// markdown. It never fails: every field resolves to a fallback when
// extraction comes up short.
func Parse(markdown string, day int) advent.Challenge {
	title := fmt.Sprintf("Day %d Challenge", day)
	if m := titleRe.FindStringSubmatch(markdown); m != nil {
		if cleaned := cleanMarkdown(m[1]); cleaned != "" {
			title = cleaned
		}
	}

	greeting := "Welcome, AI Engineer"
	if m := greetingRe.FindStringSubmatch(markdown); m != nil {
		if cleaned := cleanMarkdown(m[1]); cleaned != "" {
			greeting = cleaned
		}
	}

	description := parseDescription(markdown)
	if len(description) < 50 {
		description = fallbackDescription(day)
	}

	return advent.Challenge{
		Day:         day,
		Title:       title,
		Greeting:    greeting,
		Description: description,
		RawMarkdown: markdown,
	}
}

// parseDescription pulls up to four usable paragraphs from the story block.
func parseDescription(markdown string) string {
	m := storyRe.FindStringSubmatch(markdown)
	if m == nil {
		return ""
	}

	var paragraphs []string
	for _, p := range strings.Split(strings.TrimSpace(m[1]), "\n\n") {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" || strings.HasPrefix(trimmed, "---") || strings.HasPrefix(trimmed, "###") {
			continue
		}
		if len(trimmed) <= 10 {
			continue
		}
		cleaned := cleanMarkdown(trimmed)
		if cleaned == "" {
			continue
		}
		paragraphs = append(paragraphs, cleaned)
		if len(paragraphs) == 4 {
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}
