package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advent-mailer/pkg/advent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func tempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "email-list.json")
	return New(nil, "", "", path, testLogger())
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	st := tempStore(t)

	signups, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signups)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := tempStore(t)
	ctx := context.Background()

	original := []advent.Signup{
		{Email: "x@y.com", Subscribed: 1, CreatedAt: "2025-12-01T00:00:00Z", ID: 1},
		{Email: "z@w.com", Subscribed: 0, CreatedAt: "2025-12-02T00:00:00Z", ID: 2},
	}

	require.NoError(t, st.Save(ctx, original))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestAddEmailsPartition(t *testing.T) {
	existing := []advent.Signup{
		{Email: "a@b.com", Subscribed: 1, CreatedAt: "2025-12-01T00:00:00Z", ID: 1},
	}
	candidates := []string{"a@b.com", "A@B.COM", "bad-email", "c@d.com "}

	merged, result := AddEmails(existing, candidates)

	assert.Equal(t, []string{"c@d.com"}, result.Added)
	assert.Equal(t, []string{"bad-email"}, result.Invalid)
	for _, skipped := range result.Skipped {
		assert.Equal(t, "a@b.com", skipped)
	}

	// Partition: every candidate lands in exactly one bucket.
	assert.Equal(t, len(candidates), len(result.Added)+len(result.Skipped)+len(result.Invalid))

	// Every added and pre-existing email present exactly once.
	counts := map[string]int{}
	for _, s := range merged {
		counts[advent.NormalizeEmail(s.Email)]++
	}
	assert.Equal(t, map[string]int{"a@b.com": 1, "c@d.com": 1}, counts)

	// New records are subscribed and carry synthetic negative IDs.
	added := merged[len(merged)-1]
	assert.Equal(t, "c@d.com", added.Email)
	assert.Equal(t, 1, added.Subscribed)
	assert.Negative(t, added.ID)
	assert.NotEmpty(t, added.CreatedAt)
}

func TestAddEmailsDuplicateWithinBatch(t *testing.T) {
	merged, result := AddEmails(nil, []string{"new@e.com", "NEW@E.COM"})

	assert.Equal(t, []string{"new@e.com"}, result.Added)
	assert.Equal(t, []string{"new@e.com"}, result.Skipped)
	assert.Len(t, merged, 1)
}

func TestAddEmailsSyntheticIDsDescend(t *testing.T) {
	merged, _ := AddEmails(nil, []string{"a@a.com", "b@b.com"})
	require.Len(t, merged, 2)
	assert.Equal(t, -1, merged[0].ID)
	assert.Equal(t, -2, merged[1].ID)

	// IDs keep descending below an existing synthetic minimum.
	merged2, _ := AddEmails(merged, []string{"c@c.com"})
	assert.Equal(t, -3, merged2[2].ID)
}

func TestRemoveEmails(t *testing.T) {
	existing := []advent.Signup{
		{Email: "a@b.com", ID: 1},
		{Email: "c@d.com", ID: 2},
		{Email: "e@f.com", ID: 3},
	}

	remaining, removed := RemoveEmails(existing, []string{" C@D.COM ", "missing@x.com"})

	assert.Equal(t, 1, removed)
	require.Len(t, remaining, 2)
	assert.Equal(t, "a@b.com", remaining[0].Email)
	assert.Equal(t, "e@f.com", remaining[1].Email)
}

func TestMergeSignups(t *testing.T) {
	existing := []advent.Signup{
		{Email: "x@y.com", Subscribed: 1, ID: 1},
	}
	incoming := []advent.Signup{
		{Email: "x@y.com", Subscribed: 1, ID: 1},
		{Email: "z@w.com", Subscribed: 1, ID: 2},
	}

	merged, newCount := MergeSignups(existing, incoming)

	assert.Equal(t, 1, newCount)
	require.Len(t, merged, 2)
	assert.Equal(t, 1, merged[0].ID)
	assert.Equal(t, 2, merged[1].ID)

	// Idempotent: a second merge with the same incoming set is a no-op.
	again, newCount2 := MergeSignups(merged, incoming)
	assert.Zero(t, newCount2)
	assert.Equal(t, merged, again)
}

func TestMergeSignupsSortsByID(t *testing.T) {
	existing := []advent.Signup{
		{Email: "late@x.com", ID: 9},
	}
	incoming := []advent.Signup{
		{Email: "early@x.com", ID: 3},
		{Email: "mid@x.com", ID: 5},
	}

	merged, newCount := MergeSignups(existing, incoming)

	assert.Equal(t, 2, newCount)
	ids := make([]int, 0, len(merged))
	for _, s := range merged {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int{3, 5, 9}, ids)
}

func TestSubscribedFilters(t *testing.T) {
	signups := []advent.Signup{
		{Email: "a@b.com", Subscribed: 1},
		{Email: "c@d.com", Subscribed: 0},
		{Email: "e@f.com", Subscribed: 1},
	}

	assert.Equal(t, []string{"a@b.com", "e@f.com"}, Subscribed(signups))
}

func TestSummarize(t *testing.T) {
	signups := []advent.Signup{
		{Subscribed: 1},
		{Subscribed: 0},
		{Subscribed: 1},
	}

	stats := Summarize(signups)
	assert.Equal(t, Stats{Total: 3, Subscribed: 2, Unsubscribed: 1}, stats)
}

func TestImportLegacy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "email-list.json")
	legacy := `{
  "emails": ["One@Example.com", "two@example.com", "not-an-email"],
  "lastUpdated": "2025-11-30T12:00:00Z",
  "metadata": {"totalSubscribers": 3, "lastSyncDate": "2025-11-30T12:00:00Z"}
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	st := New(nil, "", "", path, testLogger())
	signups, err := st.ImportLegacy(context.Background())
	require.NoError(t, err)

	require.Len(t, signups, 2)
	assert.Equal(t, "one@example.com", signups[0].Email)
	assert.Equal(t, "two@example.com", signups[1].Email)
	for _, s := range signups {
		assert.Equal(t, 1, s.Subscribed)
		assert.Equal(t, "2025-11-30T12:00:00Z", s.CreatedAt)
	}
}

func TestImportLegacyRejectsCanonicalList(t *testing.T) {
	st := tempStore(t)
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, []advent.Signup{{Email: "a@b.com", ID: 1}}))

	_, err := st.ImportLegacy(ctx)
	assert.Error(t, err)
}
