//go:build integration

// Run with:
//
//	go test -v -tags=integration ./internal/backend/...
package backend

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/hits"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/postgres"
)

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "fcs_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "fcs"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTable(t *testing.T, db *postgres.Client) string {
	t.Helper()
	ctx := context.Background()
	table := fmt.Sprintf("fts_it_%d", time.Now().UnixNano())
	_, err := db.DB.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (
		id           BIGINT PRIMARY KEY,
		pid          TEXT NOT NULL,
		cmdi_pid     TEXT NOT NULL DEFAULT '',
		fragment_pid TEXT,
		body         TEXT NOT NULL,
		tsv          TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', body)) STORED
	)`, table))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.DB.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+table)
	})

	_, err = db.DB.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, pid, cmdi_pid, fragment_pid, body) VALUES
		(1, 'hdl:1', 'https://md.example/1', NULL, 'the quick brown fox jumps over the lazy dog'),
		(2, 'hdl:2', '', 'hdl:2#p3', 'a dog barks at the moon'),
		(3, 'hdl:1', '', NULL, 'nothing to see here')`, table))
	require.NoError(t, err)
	return table
}

func testBackendConfig(table string) config.BackendConfig {
	return config.BackendConfig{
		TextSearchConfig:  "simple",
		Table:             table,
		StartSel:          "\x02",
		StopSel:           "\x03",
		FragmentDelimiter: "\x1e",
		MaxFragments:      10,
		MaxWords:          10,
		MinWords:          3,
	}
}

func collect(t *testing.T, rows hits.Rows) []hits.Row {
	t.Helper()
	defer rows.Close()
	var out []hits.Row
	for rows.Next() {
		out = append(out, rows.Row())
	}
	require.NoError(t, rows.Err())
	return out
}

func TestPostgresSearch(t *testing.T) {
	db := skipIfNoPostgres(t)
	table := seedTable(t, db)
	p, err := NewPostgres(db.DB, testBackendConfig(table))
	require.NoError(t, err)

	rows, err := p.Search(context.Background(), Query{Tsquery: "dog"})
	require.NoError(t, err)
	got := collect(t, rows)

	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "https://md.example/1", got[0].CMDIPID)
	assert.Empty(t, got[0].FragmentPID)
	assert.Contains(t, got[0].HitsText, "\x02dog\x03")
	assert.Equal(t, "hdl:2#p3", got[1].FragmentPID)
}

func TestPostgresSearchRestrictedToPIDs(t *testing.T) {
	db := skipIfNoPostgres(t)
	table := seedTable(t, db)
	p, err := NewPostgres(db.DB, testBackendConfig(table))
	require.NoError(t, err)

	rows, err := p.Search(context.Background(), Query{Tsquery: "dog", PIDs: []string{"hdl:2"}})
	require.NoError(t, err)
	got := collect(t, rows)
	require.Len(t, got, 1)
	assert.Equal(t, "hdl:2", got[0].PID)
}

func TestPostgresSearchFlattens(t *testing.T) {
	db := skipIfNoPostgres(t)
	table := seedTable(t, db)
	p, err := NewPostgres(db.DB, testBackendConfig(table))
	require.NoError(t, err)

	rows, err := p.Search(context.Background(), Query{Tsquery: "(dog & !moon)"})
	require.NoError(t, err)
	defer rows.Close()
	page, err := hits.Flatten(rows, 1, 10, p.Markup())
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Contains(t, page.Fragments[0].Segments, hits.Segment{Text: "dog", Hit: true})
}
