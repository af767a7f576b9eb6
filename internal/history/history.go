// Package history persists per-scrape outcomes to a local SQLite database
// and serves aggregate statistics for the stats view.
package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS scrapes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	url TEXT NOT NULL,
	prompt_hash TEXT NOT NULL,
	model TEXT NOT NULL,
	execution_time_seconds REAL NOT NULL,
	fallback_attempts INTEGER DEFAULT 0,
	cached BOOLEAN DEFAULT 0,
	validation_passed BOOLEAN DEFAULT 1,
	schema_used TEXT,
	error TEXT,
	batch_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_scrapes_timestamp ON scrapes(timestamp);
CREATE INDEX IF NOT EXISTS idx_scrapes_model ON scrapes(model);
CREATE INDEX IF NOT EXISTS idx_scrapes_batch ON scrapes(batch_id);
`

// Record is one logged scrape operation, single or batch item.
type Record struct {
	ID               int64
	Timestamp        time.Time
	URL              string
	PromptHash       string
	Model            string
	ExecutionTime    time.Duration
	FallbackAttempts int
	Cached           bool
	ValidationPassed bool
	SchemaUsed       string
	Error            string
	BatchID          string
}

// ModelCount is a per-model usage tally.
type ModelCount struct {
	Model string
	Count int
}

// Stats aggregates history over a time window.
type Stats struct {
	TotalScrapes       int
	AvgTime            float64 // seconds; 0 when no scrapes
	CacheHits          int
	CacheHitRate       float64 // percent
	Errors             int
	ErrorRate          float64 // percent
	ValidationFailures int
	ModelUsage         []ModelCount
}

// DB is the local scrape history store.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the history database at path, initializing the
// schema as needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the database file location.
func (d *DB) Path() string { return d.path }

// HashPrompt returns a short stable digest of a prompt. Only the hash is
// stored, never the prompt text.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}

// Log inserts one scrape record. A zero Timestamp is filled with now.
func (d *DB) Log(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	var errVal any
	if rec.Error != "" {
		errVal = rec.Error
	}

	_, err := d.Exec(`
		INSERT INTO scrapes (
			timestamp, url, prompt_hash, model, execution_time_seconds,
			fallback_attempts, cached, validation_passed, schema_used, error, batch_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(time.RFC3339),
		rec.URL,
		rec.PromptHash,
		rec.Model,
		rec.ExecutionTime.Seconds(),
		rec.FallbackAttempts,
		rec.Cached,
		rec.ValidationPassed,
		rec.SchemaUsed,
		errVal,
		rec.BatchID,
	)
	if err != nil {
		return fmt.Errorf("log scrape: %w", err)
	}
	return nil
}

// Stats aggregates the last N days of history.
func (d *DB) Stats(days int) (*Stats, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	var (
		stats   Stats
		avgTime sql.NullFloat64
	)
	err := d.QueryRow(`
		SELECT
			COUNT(*),
			AVG(execution_time_seconds),
			SUM(CASE WHEN cached = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN validation_passed = 0 THEN 1 ELSE 0 END)
		FROM scrapes
		WHERE timestamp >= ?`, cutoff).
		Scan(&stats.TotalScrapes, &avgTime,
			newNullInt(&stats.CacheHits), newNullInt(&stats.Errors), newNullInt(&stats.ValidationFailures))
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	stats.AvgTime = avgTime.Float64

	if stats.TotalScrapes > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(stats.TotalScrapes) * 100
		stats.ErrorRate = float64(stats.Errors) / float64(stats.TotalScrapes) * 100
	}

	rows, err := d.Query(`
		SELECT model, COUNT(*) AS count
		FROM scrapes
		WHERE timestamp >= ?
		GROUP BY model
		ORDER BY count DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query model usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mc ModelCount
		if err := rows.Scan(&mc.Model, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan model usage: %w", err)
		}
		stats.ModelUsage = append(stats.ModelUsage, mc)
	}
	return &stats, rows.Err()
}

// Recent returns the most recent records, newest first.
func (d *DB) Recent(limit int) ([]Record, error) {
	rows, err := d.Query(`
		SELECT id, timestamp, url, prompt_hash, model, execution_time_seconds,
			fallback_attempts, cached, validation_passed,
			COALESCE(schema_used, ''), COALESCE(error, ''), COALESCE(batch_id, '')
		FROM scrapes
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent scrapes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			ts      string
			seconds float64
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.URL, &rec.PromptHash, &rec.Model,
			&seconds, &rec.FallbackAttempts, &rec.Cached, &rec.ValidationPassed,
			&rec.SchemaUsed, &rec.Error, &rec.BatchID); err != nil {
			return nil, fmt.Errorf("scan scrape record: %w", err)
		}
		rec.ExecutionTime = time.Duration(seconds * float64(time.Second))
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Timestamp = parsed
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// nullInt scans a nullable aggregate into an int, treating NULL as zero.
type nullInt struct{ dst *int }

func newNullInt(dst *int) *nullInt { return &nullInt{dst: dst} }

func (n *nullInt) Scan(src any) error {
	var v sql.NullInt64
	if err := v.Scan(src); err != nil {
		return err
	}
	*n.dst = int(v.Int64)
	return nil
}
