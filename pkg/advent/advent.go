// Package advent contains the core domain types for the Advent of AI
// challenge mailing pipeline.
package advent

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Signup represents one subscriber record in the mailing list.
// Records originate on the signup site; manually added records carry
// synthetic negative IDs so they never collide with upstream ones.
type Signup struct {
	Email      string `json:"email"`
	Subscribed int    `json:"subscribed"` // 1 = subscribed, 0 = unsubscribed
	CreatedAt  string `json:"created_at"` // RFC3339 timestamp of original signup
	ID         int    `json:"id"`
}

// IsSubscribed reports whether the record is eligible for notifications.
func (s Signup) IsSubscribed() bool {
	return s.Subscribed == 1
}

// Challenge is the extracted content bundle for a single day.
// It is built fresh on every invocation and immutable after construction.
type Challenge struct {
	Day         int
	Title       string
	Greeting    string
	Description string
	RawMarkdown string // Retained for the plain-text email fallback
}

// Message is a fully rendered notification email, never persisted.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// ErrInvalidEmail is returned when an address fails the shape check.
var ErrInvalidEmail = errors.New("invalid email address")

// emailPattern is the local@domain.tld shape check used across the pipeline.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an address. Normalization is
// idempotent; identity comparisons always use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail normalizes an address and checks its shape.
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if !emailPattern.MatchString(normalized) {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// Now returns the current time formatted the way signup timestamps are
// stored. Kept as a variable so tests can pin it.
var Now = func() string {
	return time.Now().UTC().Format(time.RFC3339)
}
