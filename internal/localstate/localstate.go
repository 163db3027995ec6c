// Package localstate persists the few values the client keeps between runs:
// the auth token and the recent search list.
package localstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"
)

const (
	TokenKey          = "Infobase-Token"
	RecentSearchesKey = "recentSearches"

	MaxRecentSearches = 5
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return err
	}
	for i := current; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	return err
}

func (s *Store) del(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Token returns the stored auth token, or "" if none is stored.
func (s *Store) Token(ctx context.Context) (string, error) {
	token, _, err := s.get(ctx, TokenKey)
	return token, err
}

func (s *Store) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return s.ClearToken(ctx)
	}
	return s.put(ctx, TokenKey, token)
}

func (s *Store) ClearToken(ctx context.Context) error {
	return s.del(ctx, TokenKey)
}

// Recent returns recent searches, most recent first.
func (s *Store) Recent(ctx context.Context) ([]string, error) {
	raw, ok, err := s.get(ctx, RecentSearchesKey)
	if err != nil || !ok {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode recent searches: %w", err)
	}
	return list, nil
}

// PushRecent records query as the most recent search. Blank queries are
// ignored and an existing entry moves to the front.
func (s *Store) PushRecent(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	list, err := s.Recent(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return list, nil
	}
	list = slices.DeleteFunc(list, func(q string) bool { return q == query })
	list = append([]string{query}, list...)
	if len(list) > MaxRecentSearches {
		list = list[:MaxRecentSearches]
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	if err := s.put(ctx, RecentSearchesKey, string(raw)); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) ClearRecent(ctx context.Context) error {
	return s.del(ctx, RecentSearchesKey)
}
