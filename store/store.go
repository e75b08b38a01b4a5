// Package store handles persistence of the subscriber mailing list.
//
// The canonical on-disk shape is a JSON array of signup records. Lists live
// either in a local file or, when a bucket is configured, in a Cloud Storage
// object. The wrapper shape used by early versions of the list
// ({emails, lastUpdated, metadata}) is supported as a one-time import only.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"

	"advent-mailer/pkg/advent"
)

// Store persists the subscriber list.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
	object    string
}

// New creates a new store. When bucket is empty the list is kept in the
// local file at localPath; otherwise it lives in the named object.
func New(client *storage.Client, bucket, object, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
		object:    object,
	}
}

// Load reads the subscriber list. A missing file or object yields an empty
// list, not an error.
func (s *Store) Load(ctx context.Context) ([]advent.Signup, error) {
	data, err := s.read(ctx)
	if err != nil {
		if IsNotFound(err) {
			s.logger.Info("No subscriber list found, starting empty", "path", s.location())
			return []advent.Signup{}, nil
		}
		return nil, err
	}

	var signups []advent.Signup
	if err := json.Unmarshal(data, &signups); err != nil {
		return nil, fmt.Errorf("unmarshal subscriber list: %w", err)
	}

	return signups, nil
}

// Save writes the subscriber list. Writes are not crash-consistent; two
// concurrent runs can race on the same file.
func (s *Store) Save(ctx context.Context, signups []advent.Signup) error {
	data, err := json.MarshalIndent(signups, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subscriber list: %w", err)
	}

	// Local filesystem storage
	if s.bucket == "" {
		if dir := filepath.Dir(s.localPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create store directory: %w", err)
			}
		}
		if err := os.WriteFile(s.localPath, data, 0o600); err != nil {
			return fmt.Errorf("write subscriber list: %w", err)
		}
		s.logger.Info("Subscriber list saved", "path", s.localPath, "count", len(signups))
		return nil
	}

	// Cloud Storage with retry logic for reliability. The previous object
	// is snapshotted first so a bad overwrite is recoverable.
	s.snapshot(ctx)
	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying save operation after error", "attempt", n, "object", s.object, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	s.logger.Info("Subscriber list saved", "bucket", s.bucket, "object", s.object, "count", len(signups))
	return nil
}

// snapshot copies the current object to a timestamped name. Best effort: a
// missing object means a first save, any other failure is only logged.
func (s *Store) snapshot(ctx context.Context) {
	src := s.client.Bucket(s.bucket).Object(s.object)
	name := fmt.Sprintf("%s.%s", s.object, time.Now().UTC().Format("20060102T150405Z"))
	dst := s.client.Bucket(s.bucket).Object(name)

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		if !errors.Is(err, storage.ErrObjectNotExist) {
			s.logger.Warn("Failed to snapshot previous list", "object", name, "error", err)
		}
		return
	}
	s.logger.Info("Previous list snapshotted", "object", name)
}

// ListBackups returns the names of list snapshots in the bucket, in the
// lexical (and therefore chronological) order the iterator yields them.
func (s *Store) ListBackups(ctx context.Context) ([]string, error) {
	if s.bucket == "" {
		return nil, errors.New("store: backups require bucket storage")
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.object + "."})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		names = append(names, attrs.Name)
	}

	return names, nil
}

func (s *Store) location() string {
	if s.bucket != "" {
		return "gs://" + s.bucket + "/" + s.object
	}
	return s.localPath
}

func (s *Store) read(ctx context.Context) ([]byte, error) {
	// Local filesystem storage
	if s.bucket == "" {
		data, err := os.ReadFile(s.localPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errStoreNotFound
			}
			return nil, fmt.Errorf("read subscriber list: %w", err)
		}
		return data, nil
	}

	// Cloud Storage with retry logic for reliability
	var data []byte
	var missing bool
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					missing = true
					return retry.Unrecoverable(errStoreNotFound)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying load operation after error", "attempt", n, "object", s.object, "error", retryErr)
		}),
	)
	if err != nil {
		if missing {
			return nil, errStoreNotFound
		}
		return nil, fmt.Errorf("load after retries: %w", err)
	}

	return data, nil
}

var errStoreNotFound = errors.New("store: list doesn't exist")

// IsNotFound checks if an error indicates the subscriber list is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, errStoreNotFound)
}

// AddResult classifies each candidate from an AddEmails call. Order within
// each slice follows input order.
type AddResult struct {
	Added   []string
	Skipped []string
	Invalid []string
}

// AddEmails validates and appends candidate addresses to the list. Each
// candidate lands in exactly one of added, skipped (already present), or
// invalid. Added records are subscribed and carry synthetic negative IDs so
// they sort ahead of upstream records instead of colliding with them.
func AddEmails(existing []advent.Signup, candidates []string) ([]advent.Signup, AddResult) {
	seen := make(map[string]bool, len(existing))
	nextID := 0
	for _, s := range existing {
		seen[advent.NormalizeEmail(s.Email)] = true
		if s.ID < nextID {
			nextID = s.ID
		}
	}

	var result AddResult
	merged := append([]advent.Signup(nil), existing...)

	for _, candidate := range candidates {
		normalized, err := advent.ValidateEmail(candidate)
		if err != nil {
			result.Invalid = append(result.Invalid, candidate)
			continue
		}
		if seen[normalized] {
			result.Skipped = append(result.Skipped, normalized)
			continue
		}

		nextID--
		merged = append(merged, advent.Signup{
			Email:      normalized,
			Subscribed: 1,
			CreatedAt:  advent.Now(),
			ID:         nextID,
		})
		seen[normalized] = true
		result.Added = append(result.Added, normalized)
	}

	return merged, result
}

// RemoveEmails deletes every record whose normalized email matches any
// target. Returns the remaining list and the count removed.
func RemoveEmails(existing []advent.Signup, targets []string) ([]advent.Signup, int) {
	remove := make(map[string]bool, len(targets))
	for _, t := range targets {
		remove[advent.NormalizeEmail(t)] = true
	}

	remaining := make([]advent.Signup, 0, len(existing))
	for _, s := range existing {
		if remove[advent.NormalizeEmail(s.Email)] {
			continue
		}
		remaining = append(remaining, s)
	}

	return remaining, len(existing) - len(remaining)
}

// MergeSignups reconciles remotely fetched signups into the local list.
// Identity is the normalized email; unseen remote records are appended and
// the merged list is stable-sorted by ID ascending. Merging the same remote
// set twice is a no-op the second time.
func MergeSignups(existing, incoming []advent.Signup) (merged []advent.Signup, newCount int) {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[advent.NormalizeEmail(s.Email)] = true
	}

	merged = append([]advent.Signup(nil), existing...)
	for _, s := range incoming {
		if seen[advent.NormalizeEmail(s.Email)] {
			continue
		}
		merged = append(merged, s)
		seen[advent.NormalizeEmail(s.Email)] = true
		newCount++
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ID < merged[j].ID
	})

	return merged, newCount
}

// Subscribed returns the addresses eligible for notification, in list order.
func Subscribed(signups []advent.Signup) []string {
	var emails []string
	for _, s := range signups {
		if s.IsSubscribed() {
			emails = append(emails, s.Email)
		}
	}
	return emails
}

// Stats summarizes a subscriber list.
type Stats struct {
	Total        int
	Subscribed   int
	Unsubscribed int
}

// Summarize counts subscription states across the list.
func Summarize(signups []advent.Signup) Stats {
	st := Stats{Total: len(signups)}
	for _, s := range signups {
		if s.IsSubscribed() {
			st.Subscribed++
		}
	}
	st.Unsubscribed = st.Total - st.Subscribed
	return st
}

// legacyList is the wrapper shape written by early versions of the tooling.
type legacyList struct {
	Emails      []string `json:"emails"`
	LastUpdated *string  `json:"lastUpdated"`
	Metadata    struct {
		TotalSubscribers int     `json:"totalSubscribers"`
		LastSyncDate     *string `json:"lastSyncDate"`
	} `json:"metadata"`
}

// ImportLegacy reads the store location expecting the legacy wrapper shape
// and converts it to canonical records. Every imported address is treated
// as subscribed; timestamps fall back to the wrapper's lastUpdated.
func (s *Store) ImportLegacy(ctx context.Context) ([]advent.Signup, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	var legacy legacyList
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("unmarshal legacy list: %w", err)
	}
	if legacy.Emails == nil {
		return nil, errors.New("not a legacy list: missing emails field")
	}

	createdAt := advent.Now()
	if legacy.LastUpdated != nil && strings.TrimSpace(*legacy.LastUpdated) != "" {
		createdAt = *legacy.LastUpdated
	}

	signups := make([]advent.Signup, 0, len(legacy.Emails))
	var result AddResult
	signups, result = AddEmails(signups, legacy.Emails)
	for i := range signups {
		signups[i].CreatedAt = createdAt
	}

	s.logger.Info("Legacy list imported",
		"imported", len(result.Added),
		"skipped", len(result.Skipped),
		"invalid", len(result.Invalid))

	return signups, nil
}
