// Package store implements the capability-addressed key-value store backing
// the tool cache and the session policy store. Keys are namespaced strings
// ("sess:{id}", "cache:weather:{place}", "cache:tool:*"); values are opaque
// strings with an optional TTL.
//
// The store is SQLite-backed and treated by its callers as an external,
// possibly-unavailable collaborator: reads fail open and writes are
// best-effort at the call sites, never here.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cbotel "github.com/citybrief/citybrief/internal/otel"
)

var tracer = cbotel.Tracer("github.com/citybrief/citybrief/internal/store")

// ErrKeyNotFound is returned by Expire when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    expires_at INTEGER,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv_entries(expires_at);
`

// Store persists namespaced key-value entries in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the store at dbPath and initializes the schema.
// Pass ":memory:" for an ephemeral store in tests.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating store schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key. The second return is false when the key is
// absent or expired; expired rows are treated as absent without being deleted
// (the purge sweep reclaims them).
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "store.get",
		trace.WithAttributes(attribute.String("store.key", key)))
	defer span.End()

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries
		 WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, time.Now().Unix(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("reading key %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key. A zero ttl stores the entry without expiry;
// otherwise the entry expires ttl from now. Overwrites refresh expiry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "store.set",
		trace.WithAttributes(attribute.String("store.key", key)))
	defer span.End()

	now := time.Now()
	var expiresAt interface{}
	if ttl != 0 {
		expiresAt = now.Add(ttl).Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		     expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		key, value, expiresAt, now.Unix())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("writing key %s: %w", key, err)
	}
	return nil
}

// Expire resets the TTL of an existing key to ttl from now.
// Returns ErrKeyNotFound when the key is absent.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "store.expire",
		trace.WithAttributes(attribute.String("store.key", key)))
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE kv_entries SET expires_at = ? WHERE key = ?`,
		time.Now().Add(ttl).Unix(), key)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("expiring key %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("expiring key %s: %w", key, err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Scan returns the live keys matching a glob pattern (SQLite GLOB: * and ?).
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "store.scan",
		trace.WithAttributes(attribute.String("store.pattern", pattern)))
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_entries
		 WHERE key GLOB ? AND (expires_at IS NULL OR expires_at > ?)`,
		pattern, time.Now().Unix())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning pattern %s: %w", pattern, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteByPatterns removes all entries (live or expired) matching any of the
// glob patterns and returns the number of rows deleted. Used by the
// administrative purge sweep.
func (s *Store) DeleteByPatterns(ctx context.Context, patterns []string) (int, error) {
	ctx, span := tracer.Start(ctx, "store.delete_by_patterns",
		trace.WithAttributes(attribute.StringSlice("store.patterns", patterns)))
	defer span.End()

	deleted := 0
	for _, pat := range patterns {
		res, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key GLOB ?`, pat)
		if err != nil {
			span.RecordError(err)
			return deleted, fmt.Errorf("purging pattern %s: %w", pat, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("purging pattern %s: %w", pat, err)
		}
		deleted += int(n)
	}

	purgesTotal.Add(ctx, int64(deleted))
	span.SetAttributes(attribute.Int("store.deleted", deleted))
	return deleted, nil
}

// PurgeExpired removes rows whose TTL has lapsed and returns the count.
// Scheduled via the cron sweep in internal/trigger.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "store.purge_expired")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		time.Now().Unix())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("purging expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purging expired entries: %w", err)
	}

	purgesTotal.Add(ctx, n)
	return int(n), nil
}

// UsageReport summarizes store occupancy for the admin endpoint.
type UsageReport struct {
	Keys               int     `json:"keys"`
	UsedBytes          int64   `json:"used_bytes"`
	UsedHuman          string  `json:"used_human"`
	ThresholdMB        int     `json:"threshold_mb"`
	PercentOfThreshold float64 `json:"percent_of_threshold"`
	ShouldPurge        bool    `json:"should_purge"`
}

// Usage reports key count and approximate byte usage against a threshold.
func (s *Store) Usage(ctx context.Context, thresholdMB int) (*UsageReport, error) {
	ctx, span := tracer.Start(ctx, "store.usage")
	defer span.End()

	var keys int
	var used sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv_entries`,
	).Scan(&keys, &used)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading store usage: %w", err)
	}

	threshold := int64(thresholdMB) * 1024 * 1024
	report := &UsageReport{
		Keys:        keys,
		UsedBytes:   used.Int64,
		UsedHuman:   humanizeBytes(used.Int64),
		ThresholdMB: thresholdMB,
	}
	if threshold > 0 {
		report.PercentOfThreshold = float64(used.Int64) / float64(threshold) * 100.0
		report.ShouldPurge = used.Int64 > threshold
	}
	return report, nil
}

func humanizeBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGT"[exp])
}
