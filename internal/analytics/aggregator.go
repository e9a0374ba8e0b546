package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/kafka"
)

const maxLatencySamples = 10000

// Stats is the aggregated view served by the stats handler.
type Stats struct {
	TotalRequests     int64            `json:"total_requests"`
	ByOperation       map[string]int64 `json:"by_operation"`
	ByVersion         map[string]int64 `json:"by_version"`
	Diagnostics       []Count          `json:"diagnostics"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []Count          `json:"top_queries"`
	ZeroResultQueries []Count          `json:"zero_result_queries"`
	TopResources      []Count          `json:"top_resources"`
	RequestsPerMinute float64          `json:"requests_per_minute"`
}

// Count is a key with its number of occurrences.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Aggregator folds request events into Stats.
type Aggregator struct {
	mu          sync.RWMutex
	total       int64
	zeroResults int64
	operations  map[string]int64
	versions    map[string]int64
	diagnostics map[string]int64
	queries     map[string]int64
	zeroQueries map[string]int64
	resources   map[string]int64
	latencies   []int64
	next        int
	startTime   time.Time
	now         func() time.Time

	logger *slog.Logger
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		operations:  make(map[string]int64),
		versions:    make(map[string]int64),
		diagnostics: make(map[string]int64),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		resources:   make(map[string]int64),
		latencies:   make([]int64, 0, 1024),
		startTime:   time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns the Kafka handler feeding agg. Undecodable messages
// are logged and skipped so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RequestEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record adds one event.
func (a *Aggregator) Record(event RequestEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.operations[event.Operation]++
	a.versions[event.Version]++
	if event.Failed() {
		a.diagnostics[event.Diagnostic]++
	}
	if event.Query != "" {
		a.queries[event.Query]++
	}
	if event.ZeroResult() {
		a.zeroResults++
		a.zeroQueries[event.Query]++
	}
	for _, pid := range event.Resources {
		a.resources[pid]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

// Track records event directly. It lets the endpoint feed the aggregator
// when no Kafka brokers are configured.
func (a *Aggregator) Track(event RequestEvent) { a.Record(event) }

// Stats returns a snapshot of the aggregated values.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalRequests:     a.total,
		ByOperation:       copyCounts(a.operations),
		ByVersion:         copyCounts(a.versions),
		Diagnostics:       topN(a.diagnostics, 10),
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queries, 10),
		ZeroResultQueries: topN(a.zeroQueries, 10),
		TopResources:      topN(a.resources, 10),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken by key.
func topN(counts map[string]int64, n int) []Count {
	result := make([]Count, 0, len(counts))
	for key, count := range counts {
		result = append(result, Count{Key: key, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
