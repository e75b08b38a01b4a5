package email

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"advent-mailer/pkg/advent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

// recordingProvider records calls and fails for addresses in failFor.
type recordingProvider struct {
	calls   []string
	failFor map[string]bool
}

func (r *recordingProvider) Send(_ context.Context, to, _, _, _ string) error {
	r.calls = append(r.calls, to)
	if r.failFor[to] {
		return errors.New("rejected")
	}
	return nil
}

func TestSendAllFailureDoesNotAbortRun(t *testing.T) {
	provider := &recordingProvider{failFor: map[string]bool{"b@b.com": true}}
	dispatcher := NewDispatcher(provider, 0, false, testLogger())

	msg := advent.Message{Subject: "s", HTML: "<p>h</p>", Text: "t"}
	result := dispatcher.SendAll(context.Background(), msg, []string{"a@a.com", "b@b.com", "c@c.com"})

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, []string{"a@a.com", "b@b.com", "c@c.com"}, provider.calls)
}

func TestSendAllDryRunSkipsProvider(t *testing.T) {
	provider := &recordingProvider{}
	dispatcher := NewDispatcher(provider, 0, true, testLogger())

	result := dispatcher.SendAll(context.Background(), advent.Message{Subject: "s"},
		[]string{"a@a.com", "b@b.com", "c@c.com"})

	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.Attempted)
	assert.Empty(t, provider.calls)
}

func TestSendAllEmptyRecipients(t *testing.T) {
	provider := &recordingProvider{}
	dispatcher := NewDispatcher(provider, 0, false, testLogger())

	result := dispatcher.SendAll(context.Background(), advent.Message{Subject: "s"}, nil)

	assert.Equal(t, Result{}, result)
	assert.Empty(t, provider.calls)
}

func TestSendAllCancelledBetweenSends(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &recordingProvider{}
	dispatcher := NewDispatcher(provider, time.Minute, false, testLogger())

	// Cancel before dispatch: the first send still runs, then the
	// inter-send wait observes the cancellation and stops.
	cancel()
	result := dispatcher.SendAll(ctx, advent.Message{Subject: "s"},
		[]string{"a@a.com", "b@b.com"})

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []string{"a@a.com"}, provider.calls)
}
