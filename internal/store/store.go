// Package store persists user accounts, trial quotas, subscriptions and usage
// history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/viajai/server/internal/core/errx"
	"github.com/viajai/server/internal/entitlement"
)

var (
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotFound is returned when a user lookup misses.
	ErrNotFound = errors.New("user not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	email               TEXT NOT NULL UNIQUE,
	password_hash       TEXT NOT NULL,
	name                TEXT NOT NULL DEFAULT '',
	created_at          INTEGER NOT NULL,
	last_login          INTEGER,
	free_uses_remaining INTEGER NOT NULL DEFAULT 3,
	subscription_start  INTEGER,
	subscription_end    INTEGER
);

CREATE TABLE IF NOT EXISTS usage_history (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id   INTEGER NOT NULL REFERENCES users(id),
	feature   TEXT NOT NULL,
	query     TEXT NOT NULL,
	response  TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_history_user ON usage_history(user_id, timestamp);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// User is one account row.
type User struct {
	ID                int64
	Email             string
	Name              string
	PasswordHash      string
	CreatedAt         time.Time
	LastLogin         *time.Time
	FreeUsesRemaining int
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
}

// SubscriptionActive reports whether the account holds an unexpired
// subscription at the given instant.
func (u *User) SubscriptionActive(now time.Time) bool {
	return u.SubscriptionEnd != nil && !now.After(*u.SubscriptionEnd)
}

// State projects the account row into an entitlement snapshot.
func (u *User) State(now time.Time) entitlement.State {
	return entitlement.State{
		Authenticated:      true,
		SubscriptionActive: u.SubscriptionActive(now),
		FreeUsesRemaining:  entitlement.ClampUses(u.FreeUsesRemaining),
	}
}

// UsageEntry is one recorded feature invocation.
type UsageEntry struct {
	Feature   string
	Query     string
	Timestamp time.Time
}

// Store implements account persistence over SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite store at path and applies the schema. The special
// path ":memory:" yields an ephemeral database for tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateUser registers a new account with the default trial budget.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (*User, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, name, created_at, free_uses_remaining) VALUES (?, ?, ?, ?, ?)`,
		email, passwordHash, name, toMillis(now), entitlement.DefaultFreeUses,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrEmailTaken
		}
		return nil, errx.WrapDB(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return s.UserByID(ctx, id)
}

const userColumns = `id, email, name, password_hash, created_at, last_login, free_uses_remaining, subscription_start, subscription_end`

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var (
		u         User
		createdAt int64
		lastLogin sql.NullInt64
		subStart  sql.NullInt64
		subEnd    sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &createdAt, &lastLogin, &u.FreeUsesRemaining, &subStart, &subEnd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errx.WrapDB(err)
	}

	u.CreatedAt = fromMillis(createdAt)
	if lastLogin.Valid {
		t := fromMillis(lastLogin.Int64)
		u.LastLogin = &t
	}
	if subStart.Valid {
		t := fromMillis(subStart.Int64)
		u.SubscriptionStart = &t
	}
	if subEnd.Valid {
		t := fromMillis(subEnd.Int64)
		u.SubscriptionEnd = &t
	}
	return &u, nil
}

// UserByEmail loads an account by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return s.scanUser(row)
}

// UserByID loads an account by id.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.scanUser(row)
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, toMillis(time.Now()), id)
	return errx.WrapDB(err)
}

// ConsumeFreeUse decrements the trial budget after a confirmed dispatch and
// returns the remaining count. The guard keeps the counter from underflowing
// when two confirmations race.
func (s *Store) ConsumeFreeUse(ctx context.Context, id int64) (int, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET free_uses_remaining = free_uses_remaining - 1 WHERE id = ? AND free_uses_remaining > 0`, id)
	if err != nil {
		return 0, errx.WrapDB(err)
	}

	var remaining int
	if err := s.db.QueryRowContext(ctx, `SELECT free_uses_remaining FROM users WHERE id = ?`, id).Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, errx.WrapDB(err)
	}
	return entitlement.ClampUses(remaining), nil
}

// ActivateSubscription grants a subscription for the given duration, starting now.
func (s *Store) ActivateSubscription(ctx context.Context, email string, duration time.Duration) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscription_start = ?, subscription_end = ? WHERE email = ?`,
		toMillis(now), toMillis(now.Add(duration)), email)
	if err != nil {
		return errx.WrapDB(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateSubscription expires the subscription immediately.
func (s *Store) DeactivateSubscription(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscription_end = ? WHERE email = ?`,
		toMillis(time.Now().Add(-time.Second)), email)
	if err != nil {
		return errx.WrapDB(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordUsage appends one invocation to the account's usage history.
func (s *Store) RecordUsage(ctx context.Context, userID int64, feature, query, response string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_history (user_id, feature, query, response, timestamp) VALUES (?, ?, ?, ?, ?)`,
		userID, feature, query, response, toMillis(time.Now()))
	return errx.WrapDB(err)
}

// RecentUsage lists the account's latest invocations, newest first.
func (s *Store) RecentUsage(ctx context.Context, userID int64, limit int) ([]UsageEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feature, query, timestamp FROM usage_history WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	defer rows.Close()

	var entries []UsageEntry
	for rows.Next() {
		var (
			e  UsageEntry
			ts int64
		)
		if err := rows.Scan(&e.Feature, &e.Query, &ts); err != nil {
			return nil, errx.WrapDB(err)
		}
		e.Timestamp = fromMillis(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapDB(err)
	}
	return entries, nil
}
