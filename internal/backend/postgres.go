// Package backend runs full-text searches against PostgreSQL and exposes the
// result as a forward-only cursor of highlighted rows.
//
// The searched table needs at least these columns:
//
//	CREATE TABLE full_text_search (
//	    id           BIGINT PRIMARY KEY,
//	    pid          TEXT NOT NULL,
//	    cmdi_pid     TEXT NOT NULL DEFAULT '',
//	    fragment_pid TEXT,
//	    body         TEXT NOT NULL,
//	    tsv          TSVECTOR NOT NULL
//	);
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/hits"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/config"
)

// Query is a compiled search request.
type Query struct {
	// Tsquery is the to_tsquery input produced by the CQL compiler.
	Tsquery string
	// PIDs restricts the search to these resources when non-empty.
	PIDs []string
}

// Searcher runs a query and returns its rows ordered by resource id. The
// caller closes the returned rows.
type Searcher interface {
	Search(ctx context.Context, q Query) (hits.Rows, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Postgres is the ts_headline based Searcher.
type Postgres struct {
	db      Querier
	cfg     config.BackendConfig
	sql     string
	sqlPIDs string
	options string
	logger  *slog.Logger
}

// NewPostgres prepares the statements for cfg. It fails when a highlight
// option cannot be expressed in a ts_headline option string.
func NewPostgres(db Querier, cfg config.BackendConfig) (*Postgres, error) {
	options, err := HeadlineOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{
		db:      db,
		cfg:     cfg,
		sql:     buildQuery(cfg.Table, false),
		sqlPIDs: buildQuery(cfg.Table, true),
		options: options,
		logger:  slog.Default().With("component", "backend"),
	}, nil
}

// Markup returns the reserved sequences the rows are highlighted with.
func (p *Postgres) Markup() hits.Markup {
	return MarkupOf(p.cfg)
}

// MarkupOf returns the reserved sequences configured in cfg.
func MarkupOf(cfg config.BackendConfig) hits.Markup {
	return hits.Markup{
		FragmentDelimiter: cfg.FragmentDelimiter,
		StartTag:          cfg.StartSel,
		EndTag:            cfg.StopSel,
	}
}

// Search implements Searcher.
func (p *Postgres) Search(ctx context.Context, q Query) (hits.Rows, error) {
	query, args := p.sql, []any{p.cfg.TextSearchConfig, q.Tsquery, p.options}
	if len(q.PIDs) > 0 {
		query = p.sqlPIDs
		args = append(args, pq.Array(q.PIDs))
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying full text search: %w", err)
	}
	p.logger.Debug("search started", "tsquery", q.Tsquery, "pids", len(q.PIDs))
	return NewRows(rows), nil
}

func buildQuery(table string, withPIDs bool) string {
	var b strings.Builder
	b.WriteString(`SELECT id, pid, cmdi_pid, coalesce(fragment_pid, ''),
       ts_headline($1::regconfig, body, q, $3)
  FROM `)
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(`, to_tsquery($1::regconfig, $2) AS q
 WHERE tsv @@ q`)
	if withPIDs {
		b.WriteString(`
   AND pid = ANY($4)`)
	}
	b.WriteString(`
 ORDER BY id`)
	return b.String()
}

// HeadlineOptions renders the ts_headline option string. Selector values are
// double quoted so that control characters survive; a value holding a double
// quote or a comma is rejected.
func HeadlineOptions(cfg config.BackendConfig) (string, error) {
	quoted := func(name, v string) (string, error) {
		if strings.ContainsAny(v, `",`) {
			return "", fmt.Errorf("backend %s %q: must not contain '\"' or ','", name, v)
		}
		return name + `="` + v + `"`, nil
	}
	var parts []string
	for _, o := range []struct{ name, value string }{
		{"StartSel", cfg.StartSel},
		{"StopSel", cfg.StopSel},
		{"FragmentDelimiter", cfg.FragmentDelimiter},
	} {
		s, err := quoted(o.name, o.value)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	for _, o := range []struct {
		name  string
		value int
	}{
		{"MaxFragments", cfg.MaxFragments},
		{"MaxWords", cfg.MaxWords},
		{"MinWords", cfg.MinWords},
	} {
		if o.value > 0 {
			parts = append(parts, o.name+"="+strconv.Itoa(o.value))
		}
	}
	return strings.Join(parts, ", "), nil
}
