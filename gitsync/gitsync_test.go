package gitsync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestCommitAndPush(t *testing.T) {
	var calls [][]string
	syncer := New(".", testLogger())
	syncer.runner = func(_ context.Context, dir string, args ...string) (string, error) {
		assert.Equal(t, ".", dir)
		calls = append(calls, args)
		return "", nil
	}

	err := syncer.CommitAndPush(context.Background(), "data/email-list.json", "Add 2 new signup(s) to email list")
	require.NoError(t, err)

	require.Len(t, calls, 3)
	assert.Equal(t, []string{"add", "data/email-list.json"}, calls[0])
	assert.Equal(t, []string{"commit", "-m", "Add 2 new signup(s) to email list"}, calls[1])
	assert.Equal(t, []string{"push"}, calls[2])
}

func TestCommitAndPushNothingToCommit(t *testing.T) {
	var calls [][]string
	syncer := New(".", testLogger())
	syncer.runner = func(_ context.Context, _ string, args ...string) (string, error) {
		calls = append(calls, args)
		if args[0] == "commit" {
			return "nothing to commit, working tree clean", errors.New("exit status 1")
		}
		return "", nil
	}

	err := syncer.CommitAndPush(context.Background(), "data/email-list.json", "msg")
	require.NoError(t, err)

	// No push after an empty commit.
	require.Len(t, calls, 2)
	assert.Equal(t, "commit", calls[1][0])
}

func TestCommitAndPushPushFails(t *testing.T) {
	syncer := New(".", testLogger())
	syncer.runner = func(_ context.Context, _ string, args ...string) (string, error) {
		if args[0] == "push" {
			return "remote rejected", errors.New("exit status 1")
		}
		return "", nil
	}

	err := syncer.CommitAndPush(context.Background(), "data/email-list.json", "msg")
	assert.ErrorContains(t, err, "git push")
	assert.ErrorContains(t, err, "remote rejected")
}
