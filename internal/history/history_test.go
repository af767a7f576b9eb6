package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())
}

func TestHashPrompt(t *testing.T) {
	h := HashPrompt("Extract the title")
	assert.Len(t, h, 16)
	assert.Equal(t, h, HashPrompt("Extract the title"))
	assert.NotEqual(t, h, HashPrompt("Extract the price"))
}

func TestLogAndRecent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Log(Record{
		URL:           "https://a.example",
		PromptHash:    HashPrompt("Extract the title"),
		Model:         "qwen2.5-coder:7b",
		ExecutionTime: 1500 * time.Millisecond,
		Cached:        true,
	}))
	require.NoError(t, db.Log(Record{
		URL:           "https://b.example",
		PromptHash:    HashPrompt("Extract the title"),
		Model:         "mistral:7b",
		ExecutionTime: 3 * time.Second,
		Error:         "timeout after 30s",
		BatchID:       "batch-1",
	}))

	records, err := db.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "https://b.example", records[0].URL)
	assert.Equal(t, "timeout after 30s", records[0].Error)
	assert.Equal(t, "batch-1", records[0].BatchID)
	assert.Equal(t, 3*time.Second, records[0].ExecutionTime)

	assert.Equal(t, "https://a.example", records[1].URL)
	assert.True(t, records[1].Cached)
	assert.Empty(t, records[1].Error)
	assert.False(t, records[1].Timestamp.IsZero())
}

func TestRecentLimit(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Log(Record{URL: "https://a.example", Model: "m", PromptHash: "x"}))
	}

	records, err := db.Recent(3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Log(Record{
		URL: "https://a.example", PromptHash: "x", Model: "qwen2.5-coder:7b",
		ExecutionTime: 2 * time.Second, Cached: true, ValidationPassed: true,
	}))
	require.NoError(t, db.Log(Record{
		URL: "https://b.example", PromptHash: "x", Model: "qwen2.5-coder:7b",
		ExecutionTime: 4 * time.Second, ValidationPassed: true,
	}))
	require.NoError(t, db.Log(Record{
		URL: "https://c.example", PromptHash: "x", Model: "mistral:7b",
		ExecutionTime: 6 * time.Second, Error: "connection refused", ValidationPassed: false,
	}))

	stats, err := db.Stats(7)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalScrapes)
	assert.InDelta(t, 4.0, stats.AvgTime, 0.01)
	assert.Equal(t, 1, stats.CacheHits)
	assert.InDelta(t, 33.3, stats.CacheHitRate, 0.1)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.ValidationFailures)

	require.Len(t, stats.ModelUsage, 2)
	assert.Equal(t, "qwen2.5-coder:7b", stats.ModelUsage[0].Model)
	assert.Equal(t, 2, stats.ModelUsage[0].Count)
}

func TestStatsEmpty(t *testing.T) {
	db := openTestDB(t)

	stats, err := db.Stats(7)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalScrapes)
	assert.Zero(t, stats.AvgTime)
	assert.Zero(t, stats.CacheHitRate)
	assert.Empty(t, stats.ModelUsage)
}

func TestStatsWindowExcludesOldRecords(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Log(Record{
		URL: "https://old.example", PromptHash: "x", Model: "m",
		Timestamp: time.Now().AddDate(0, 0, -30), ValidationPassed: true,
	}))
	require.NoError(t, db.Log(Record{
		URL: "https://new.example", PromptHash: "x", Model: "m", ValidationPassed: true,
	}))

	stats, err := db.Stats(7)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalScrapes)
}
