package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"asha-agent/internal/domain"
)

// SQLiteStore implements the same session-store contract as Client on a
// local SQLite file. It backs the development server in cmd/server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) a SQLite-backed session store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("repository: database path must not be empty")
	}
	if dir := filepath.Dir(dbPath); dir != "." && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("repository: create database directory: %w", err)
		}
	}

	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		// WAL keeps concurrent turn reads from blocking on appends.
		dsn = dbPath + "?_journal=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("repository: ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("repository: initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_key, id);

	CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		summary TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		age TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetTurns returns every turn for a session in append order. Unknown
// sessions yield an empty slice.
func (s *SQLiteStore) GetTurns(ctx context.Context, sessionKey string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE session_key = ? ORDER BY id`, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("repository: GetTurns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("repository: scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate turn rows: %w", err)
	}
	return turns, nil
}

// GetSummary returns the rolling summary, or "" when absent.
func (s *SQLiteStore) GetSummary(ctx context.Context, sessionKey string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM sessions WHERE session_key = ?`, sessionKey).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("repository: GetSummary: %w", err)
	}
	return summary, nil
}

// ReplaceSummary overwrites the session's rolling summary, creating the
// session record if absent.
func (s *SQLiteStore) ReplaceSummary(ctx context.Context, sessionKey, summary string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO sessions (session_key, summary, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(session_key) DO UPDATE SET
		summary = excluded.summary,
		updated_at = excluded.updated_at`,
		sessionKey, summary, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("repository: ReplaceSummary: %w", err)
	}
	return nil
}

// AppendTurnPair inserts the user turn and its paired assistant turn inside
// one transaction so readers never see a half-written pair.
func (s *SQLiteStore) AppendTurnPair(ctx context.Context, sessionKey, userContent, assistantContent string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return errors.New("repository: AppendTurnPair: session key is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: AppendTurnPair begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	const insert = `INSERT INTO turns (session_key, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, sessionKey, domain.RoleUser, userContent, now); err != nil {
		return fmt.Errorf("repository: AppendTurnPair user turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, sessionKey, domain.RoleAssistant, assistantContent, now); err != nil {
		return fmt.Errorf("repository: AppendTurnPair assistant turn: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: AppendTurnPair commit: %w", err)
	}
	return nil
}

// GetProfile returns the profile for an email, or nil when unknown.
func (s *SQLiteStore) GetProfile(ctx context.Context, email string) (*domain.UserProfile, error) {
	p := domain.UserProfile{Email: email}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, domain, age FROM users WHERE email = ?`, email).
		Scan(&p.Name, &p.Domain, &p.Age)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: GetProfile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or updates a user profile record.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile domain.UserProfile) error {
	if strings.TrimSpace(profile.Email) == "" {
		return errors.New("repository: UpsertProfile: email is required")
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO users (email, name, domain, age) VALUES (?, ?, ?, ?)
	ON CONFLICT(email) DO UPDATE SET
		name = excluded.name,
		domain = excluded.domain,
		age = excluded.age`,
		profile.Email, profile.Name, profile.Domain, profile.Age)
	if err != nil {
		return fmt.Errorf("repository: UpsertProfile: %w", err)
	}
	return nil
}
