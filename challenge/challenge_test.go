package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleMarkdown = `# Day 3: **Build a Research Agent**

## **Welcome, AI Engineer!**

The elves have a problem. Their research pipeline broke overnight and nobody knows why.

---

Your mission, should you choose to accept it, is to [rebuild the pipeline](https://example.com/docs) using an agentic workflow that can recover from failures on its own.

ok

This one is *tricky*: the agent needs to plan, execute, and verify each step before moving on to the next.

A fourth paragraph with plenty of detail about what success looks like for this challenge.

A fifth paragraph that should be cut by the four-paragraph preview limit.

### Requirements

- Do the thing
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestParseExtractsFields(t *testing.T) {
	ch := Parse(sampleMarkdown, 3)

	if ch.Title != "Day 3: Build a Research Agent" {
		t.Errorf("title = %q", ch.Title)
	}
	if ch.Greeting != "Welcome, AI Engineer!" {
		t.Errorf("greeting = %q", ch.Greeting)
	}
	if ch.RawMarkdown != sampleMarkdown {
		t.Error("raw markdown should be retained unmodified")
	}

	paragraphs := strings.Split(ch.Description, "\n\n")
	if len(paragraphs) != 4 {
		t.Fatalf("description has %d paragraphs, want 4:\n%s", len(paragraphs), ch.Description)
	}
	if !strings.HasPrefix(paragraphs[0], "The elves have a problem") {
		t.Errorf("first paragraph = %q", paragraphs[0])
	}
	// Link syntax stripped, link text kept.
	if strings.Contains(ch.Description, "](") || !strings.Contains(ch.Description, "rebuild the pipeline") {
		t.Errorf("link not cleaned: %q", ch.Description)
	}
	// Emphasis stripped.
	if strings.Contains(ch.Description, "*") {
		t.Errorf("emphasis not cleaned: %q", ch.Description)
	}
	// Separator and too-short paragraphs dropped.
	if strings.Contains(ch.Description, "---") || strings.Contains(ch.Description, "\nok\n") {
		t.Errorf("separator or short paragraph kept: %q", ch.Description)
	}
	// The fifth paragraph is past the preview limit.
	if strings.Contains(ch.Description, "fifth paragraph") {
		t.Errorf("paragraph limit not applied: %q", ch.Description)
	}
}

func TestParseFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
	}{
		{name: "empty input", markdown: ""},
		{name: "no headings", markdown: "just some text\n\nwith paragraphs"},
		{name: "whitespace only", markdown: "   \n\n   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := Parse(tt.markdown, 7)

			if ch.Title != "Day 7 Challenge" {
				t.Errorf("title fallback = %q, want %q", ch.Title, "Day 7 Challenge")
			}
			if ch.Greeting != "Welcome, AI Engineer" {
				t.Errorf("greeting fallback = %q", ch.Greeting)
			}
			want := "Your Day 7 challenge is now available! Head to the site to see what's in store."
			if ch.Description != want {
				t.Errorf("description fallback = %q", ch.Description)
			}
		})
	}
}

func TestParseShortDescriptionFallsBack(t *testing.T) {
	markdown := "# Day 2\n\n## Welcome back\n\nShort story here.\n\n### Task\n"
	ch := Parse(markdown, 2)
	if !strings.Contains(ch.Description, "now available") {
		t.Errorf("under-50-character description should fall back, got %q", ch.Description)
	}
}

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "**bold** text", want: "bold text"},
		{input: "*italic* text", want: "italic text"},
		{input: "[link text](https://example.com)", want: "link text"},
		{input: `escaped\!`, want: "escaped!"},
		{input: `stray \backslash`, want: "stray backslash"},
		{input: "  padded  ", want: "padded"},
	}

	for _, tt := range tests {
		if got := cleanMarkdown(tt.input); got != tt.want {
			t.Errorf("cleanMarkdown(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFetchSuccess(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, sampleMarkdown)
	}))
	defer server.Close()

	f := New(server.Client(), Source{
		BaseURL:    server.URL,
		Owner:      "blackgirlbytes",
		Repo:       "frosty-agent-forge",
		Branch:     "main",
		PathFormat: "day%d.md",
	}, testLogger())

	markdown, err := f.Fetch(context.Background(), 3)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if markdown != sampleMarkdown {
		t.Error("fetched markdown does not match served content")
	}
	if gotPath != "/blackgirlbytes/frosty-agent-forge/main/challenges/day3.md" {
		t.Errorf("requested path = %q", gotPath)
	}
}

func TestFetchNotFoundIsNotRetried(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(server.Client(), Source{
		BaseURL:    server.URL,
		Owner:      "o",
		Repo:       "r",
		Branch:     "main",
		PathFormat: "day%d.md",
	}, testLogger())

	_, err := f.Fetch(context.Background(), 26)
	if !IsNotFound(err) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
	if requests != 1 {
		t.Errorf("404 was retried: %d requests", requests)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Day != 26 {
		t.Errorf("NotFoundError day = %v", err)
	}
}
