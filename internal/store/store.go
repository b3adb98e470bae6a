package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("store: not found")

// APIKey is one client credential with its counters
type APIKey struct {
	Key           string
	Name          string
	Enabled       bool
	Requests      int64
	TodayRequests int64
	UpdatedAt     time.Time
}

// EndpointStats are the counters of one upstream endpoint
type EndpointStats struct {
	Name          string
	Weight        int
	Requests      int64
	Failures      int64
	TodayRequests int64
	TodayFailures int64
	LastStatus    int
}

// Store persists prompts, API keys, usage and endpoint statistics
type Store interface {
	// StorePrompt appends the latest user turn; nothing reads it back
	StorePrompt(ctx context.Context, requestID, text string, imageURLs []string) error
	LookupAPIKey(ctx context.Context, key string) (*APIKey, error)
	RecordUsage(ctx context.Context, key string) error
	RecordEndpointResult(ctx context.Context, name string, status int) error
	// EndpointWeights returns the weights overridden in the endpoints table
	EndpointWeights(ctx context.Context) (map[string]int, error)
	EndpointStats(ctx context.Context, name string) (*EndpointStats, error)
	ResetDailyCounters(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store on a single sqlite file
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and schema if needed
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS prompts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		text TEXT NOT NULL,
		image_urls TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		api_key TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		requests INTEGER NOT NULL DEFAULT 0,
		today_requests INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS endpoints (
		name TEXT PRIMARY KEY,
		weight INTEGER NOT NULL DEFAULT 0,
		requests INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		today_requests INTEGER NOT NULL DEFAULT 0,
		today_failures INTEGER NOT NULL DEFAULT 0,
		last_status INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) StorePrompt(ctx context.Context, requestID, text string, imageURLs []string) error {
	if imageURLs == nil {
		imageURLs = []string{}
	}
	images, err := json.Marshal(imageURLs)
	if err != nil {
		return fmt.Errorf("failed to encode image urls: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prompts (request_id, text, image_urls, created_at) VALUES (?, ?, ?, ?)`,
		requestID, text, string(images), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store prompt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LookupAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var (
		k         APIKey
		enabled   int
		updatedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT api_key, name, enabled, requests, today_requests, updated_at FROM api_keys WHERE api_key = ?`,
		key,
	).Scan(&k.Key, &k.Name, &enabled, &k.Requests, &k.TodayRequests, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	k.Enabled = enabled != 0
	if updatedAt.Valid {
		k.UpdatedAt = updatedAt.Time
	}
	return &k, nil
}

// AddAPIKey inserts or re-enables a key
func (s *SQLiteStore) AddAPIKey(ctx context.Context, key, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (api_key, name, enabled, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(api_key) DO UPDATE SET name = excluded.name, enabled = 1, updated_at = excluded.updated_at`,
		key, name, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to add api key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET requests = requests + 1, today_requests = today_requests + 1, updated_at = ? WHERE api_key = ?`,
		s.now().UTC(), key,
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordEndpointResult counts one upstream call. Statuses outside 2xx count
// as failures.
func (s *SQLiteStore) RecordEndpointResult(ctx context.Context, name string, status int) error {
	failed := 0
	if status < 200 || status >= 300 {
		failed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO endpoints (name, requests, failures, today_requests, today_failures, last_status, updated_at)
		VALUES (?, 1, ?, 1, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			requests = requests + 1,
			failures = failures + excluded.failures,
			today_requests = today_requests + 1,
			today_failures = today_failures + excluded.today_failures,
			last_status = excluded.last_status,
			updated_at = excluded.updated_at`,
		name, failed, failed, status, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record endpoint result: %w", err)
	}
	return nil
}

// SetEndpointWeight overrides the configured weight of an endpoint
func (s *SQLiteStore) SetEndpointWeight(ctx context.Context, name string, weight int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO endpoints (name, weight, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET weight = excluded.weight, updated_at = excluded.updated_at`,
		name, weight, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set endpoint weight: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EndpointWeights(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, weight FROM endpoints WHERE weight > 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint weights: %w", err)
	}
	defer rows.Close()

	weights := make(map[string]int)
	for rows.Next() {
		var (
			name   string
			weight int
		)
		if err := rows.Scan(&name, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint weight: %w", err)
		}
		weights[name] = weight
	}
	return weights, rows.Err()
}

func (s *SQLiteStore) EndpointStats(ctx context.Context, name string) (*EndpointStats, error) {
	var st EndpointStats
	err := s.db.QueryRowContext(ctx,
		`SELECT name, weight, requests, failures, today_requests, today_failures, last_status
		FROM endpoints WHERE name = ?`,
		name,
	).Scan(&st.Name, &st.Weight, &st.Requests, &st.Failures, &st.TodayRequests, &st.TodayFailures, &st.LastStatus)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoint stats: %w", err)
	}
	return &st, nil
}

// ResetDailyCounters zeroes every today_* column
func (s *SQLiteStore) ResetDailyCounters(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE api_keys SET today_requests = 0`); err != nil {
		return fmt.Errorf("failed to reset api key counters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE endpoints SET today_requests = 0, today_failures = 0`); err != nil {
		return fmt.Errorf("failed to reset endpoint counters: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
