// Package gitsync pushes subscriber-list changes to the version-control
// remote after a reconciliation run.
package gitsync

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Syncer commits and pushes a single tracked file.
type Syncer struct {
	logger  *slog.Logger
	repoDir string
	runner  func(ctx context.Context, dir string, args ...string) (string, error)
}

// New creates a syncer for the git repository at repoDir.
func New(repoDir string, logger *slog.Logger) *Syncer {
	return &Syncer{
		logger:  logger,
		repoDir: repoDir,
		runner:  runGit,
	}
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// CommitAndPush stages path, commits with message, and pushes. A commit
// with nothing staged is not an error.
func (s *Syncer) CommitAndPush(ctx context.Context, path, message string) error {
	s.logger.Info("Committing changes to git", "path", path, "message", message)

	if out, err := s.runner(ctx, s.repoDir, "add", path); err != nil {
		return fmt.Errorf("git add: %w (%s)", err, out)
	}

	if out, err := s.runner(ctx, s.repoDir, "commit", "-m", message); err != nil {
		if strings.Contains(out, "nothing to commit") {
			s.logger.Info("No changes to commit")
			return nil
		}
		return fmt.Errorf("git commit: %w (%s)", err, out)
	}

	if out, err := s.runner(ctx, s.repoDir, "push"); err != nil {
		return fmt.Errorf("git push: %w (%s)", err, out)
	}

	s.logger.Info("Changes pushed to remote", "path", path)
	return nil
}
