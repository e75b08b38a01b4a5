// Package signups imports newly registered signups from the remote signup
// site. Two transports exist behind the same interface: a direct Postgres
// connection, and a Railway SSH proxy that runs a query on the remote host
// and returns a JSON array on stdout. The importer is a pure read; all
// merge logic lives in the store package.
package signups

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	// Postgres driver for the direct-connection source.
	_ "github.com/lib/pq"

	"advent-mailer/pkg/advent"
)

// Source fetches the full remote signup set.
type Source interface {
	FetchRemote(ctx context.Context) ([]advent.Signup, error)
}

// ErrNoCredentials indicates neither a database URL nor a Railway token is
// configured. It is checked before any I/O.
var ErrNoCredentials = errors.New("signups: no DATABASE_URL or RAILWAY_TOKEN configured")

// OpenPostgres opens and pings a Postgres connection from a DSN.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping database: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// PostgresSource reads signups over a direct database connection.
type PostgresSource struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSource creates a Postgres-backed signup source.
func NewPostgresSource(db *sql.DB, logger *slog.Logger) *PostgresSource {
	return &PostgresSource{db: db, logger: logger}
}

// FetchRemote returns every signup, newest first.
func (p *PostgresSource) FetchRemote(ctx context.Context) ([]advent.Signup, error) {
	p.logger.Info("Querying signups", "transport", "postgres")

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, email, subscribed, created_at FROM signups ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query signups: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			p.logger.Warn("Failed to close rows", "error", closeErr)
		}
	}()

	var signups []advent.Signup
	for rows.Next() {
		var s advent.Signup
		var createdAt time.Time
		if err := rows.Scan(&s.ID, &s.Email, &s.Subscribed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan signup: %w", err)
		}
		s.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		signups = append(signups, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signups: %w", err)
	}

	p.logger.Info("Signups fetched", "transport", "postgres", "count", len(signups))
	return signups, nil
}

// RailwayConfig identifies the remote project for the SSH proxy transport.
type RailwayConfig struct {
	Token       string
	ProjectID   string
	ServiceID   string
	Environment string
}

// remoteQuery runs on the Railway host against the embedded signups
// database. JSON goes to stdout; diagnostics go to stderr so they never
// corrupt the payload.
const remoteQuery = `node -e "const db = require('better-sqlite3')('./data/signups.db'); const all = db.prepare('SELECT * FROM signups ORDER BY created_at DESC').all(); console.log(JSON.stringify(all)); db.close();"`

// RailwaySource reads signups by proxying a query through the Railway CLI.
type RailwaySource struct {
	logger *slog.Logger
	runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
	config RailwayConfig
}

// NewRailwaySource creates a Railway-SSH-backed signup source.
func NewRailwaySource(config RailwayConfig, logger *slog.Logger) *RailwaySource {
	return &RailwaySource{
		logger: logger,
		config: config,
		runner: runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// FetchRemote runs the proxied query and parses the JSON array from stdout.
func (r *RailwaySource) FetchRemote(ctx context.Context) ([]advent.Signup, error) {
	if r.config.Token == "" {
		return nil, ErrNoCredentials
	}

	args := []string{"ssh"}
	if r.config.ProjectID != "" {
		args = append(args, "--project", r.config.ProjectID)
	}
	if r.config.ServiceID != "" {
		args = append(args, "--service", r.config.ServiceID)
	}
	environment := r.config.Environment
	if environment == "" {
		environment = "production"
	}
	args = append(args, "--environment", environment, remoteQuery)

	r.logger.Info("Querying signups",
		"transport", "railway_ssh",
		"project", r.config.ProjectID,
		"service", r.config.ServiceID,
		"environment", environment)

	stdout, stderr, err := r.runner(ctx, "railway", args...)
	for _, line := range strings.Split(strings.TrimSpace(string(stderr)), "\n") {
		if line != "" {
			r.logger.Debug("Remote query diagnostic", "line", line)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("railway ssh: %w", err)
	}

	payload := extractJSONArray(string(stdout))
	if payload == "" {
		return nil, errors.New("railway ssh: no JSON output found")
	}

	var signups []advent.Signup
	if err := json.Unmarshal([]byte(payload), &signups); err != nil {
		return nil, fmt.Errorf("parse remote query output: %w", err)
	}

	r.logger.Info("Signups fetched", "transport", "railway_ssh", "count", len(signups))
	return signups, nil
}

// extractJSONArray finds the payload line in CLI output that may carry
// banner or progress text around it.
func extractJSONArray(output string) string {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			return trimmed
		}
	}
	return ""
}
