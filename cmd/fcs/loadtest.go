package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var defaultLoadQueries = []string{
	"dog",
	"dog cat",
	"house and garden",
	"river or lake",
	"(sun or moon) and night",
	"\"lazy dog\"",
	"tree not forest",
	"mountain",
}

type loadConfig struct {
	BaseURL        string
	Concurrency    int
	Duration       time.Duration
	Version        string
	MaximumRecords int
	Queries        []string
}

// loadStats counts outcomes. A 200 carrying a diagnostic is not a success.
type loadStats struct {
	total       atomic.Int64
	success     atomic.Int64
	diagnostics atomic.Int64
	errors      atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, body []byte, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	switch {
	case status != http.StatusOK:
		s.errors.Add(1)
	case bytes.Contains(body, []byte(":diagnostics ")):
		s.diagnostics.Add(1)
	default:
		s.success.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

func newLoadTestCmd() *cobra.Command {
	cfg := loadConfig{Queries: defaultLoadQueries}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Send searchRetrieve requests to a running endpoint and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== FCS Endpoint Load Test ===")
			fmt.Fprintf(out, "Target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Duration:    %s\n", cfg.Duration)
			fmt.Fprintf(out, "Queries:     %d unique\n\n", len(cfg.Queries))

			stats, err := runLoad(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printLoadReport(out, stats, cfg.Duration)
			if stats.total.Load() == 0 {
				return fmt.Errorf("no requests completed; is the endpoint running?")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the endpoint")
	f.IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	f.DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	f.StringVar(&cfg.Version, "sru-version", "2.0", "SRU version to request")
	f.IntVar(&cfg.MaximumRecords, "maximum-records", 10, "maximumRecords per request")
	f.StringSliceVar(&cfg.Queries, "query", defaultLoadQueries, "CQL queries to cycle through")
	return cmd
}

func runLoad(ctx context.Context, cfg loadConfig) (*loadStats, error) {
	if cfg.Concurrency < 1 || len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("need at least one worker and one query")
	}
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		next := w
		g.Go(func() error {
			for ctx.Err() == nil {
				query := cfg.Queries[next%len(cfg.Queries)]
				next++
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL(cfg, query), nil)
				if err != nil {
					return fmt.Errorf("creating request: %w", err)
				}

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					stats.record(time.Since(start), 0, nil, err)
					continue
				}
				body, err := io.ReadAll(resp.Body)
				resp.Body.Close()
				if err != nil && ctx.Err() != nil {
					return nil
				}
				stats.record(time.Since(start), resp.StatusCode, body, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func searchURL(cfg loadConfig, query string) string {
	v := url.Values{}
	v.Set("operation", "searchRetrieve")
	v.Set("version", cfg.Version)
	v.Set("query", query)
	if cfg.MaximumRecords > 0 {
		v.Set("maximumRecords", fmt.Sprint(cfg.MaximumRecords))
	}
	return cfg.BaseURL + "/?" + v.Encode()
}

func printLoadReport(out io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.total.Load()
	fmt.Fprintln(out, "=== Results ===")
	fmt.Fprintf(out, "Total Requests:  %d\n", total)
	fmt.Fprintf(out, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(out, "Diagnostics:     %d\n", stats.diagnostics.Load())
	fmt.Fprintf(out, "Errors:          %d\n", stats.errors.Load())
	if total > 0 {
		fmt.Fprintf(out, "Error Rate:      %.2f%%\n", float64(stats.errors.Load())/float64(total)*100)
		fmt.Fprintf(out, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(stats.codes))
	for code, n := range stats.codes {
		counts[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "=== Latency ===")
		fmt.Fprintf(out, "Min:    %s\n", latencies[0])
		fmt.Fprintf(out, "Avg:    %s\n", sum/time.Duration(len(latencies)))
		fmt.Fprintf(out, "P50:    %s\n", latencyPercentile(latencies, 50))
		fmt.Fprintf(out, "P95:    %s\n", latencyPercentile(latencies, 95))
		fmt.Fprintf(out, "P99:    %s\n", latencyPercentile(latencies, 99))
		fmt.Fprintf(out, "Max:    %s\n", latencies[len(latencies)-1])
	}

	sort.Ints(codes)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Status Codes ===")
	for _, code := range codes {
		fmt.Fprintf(out, "  %d: %d\n", code, counts[code])
	}
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
