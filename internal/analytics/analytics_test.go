package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesFullBatch(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 2, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(RequestEvent{Operation: "explain"})
	c.Track(RequestEvent{Operation: "searchRetrieve"})
	assert.Eventually(t, func() bool { return pub.published() == 2 }, time.Second, 5*time.Millisecond)

	c.Track(RequestEvent{Operation: "scan"})
	cancel()
	c.Close()
	assert.Equal(t, 3, pub.published())
	assert.Zero(t, c.Pending())
}

func TestCollectorKeepsEventsOnFailureAndDrops(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := NewCollector(pub, 1, time.Hour, m)

	for i := 0; i < 12; i++ {
		c.Track(RequestEvent{Operation: "explain"})
	}
	assert.Equal(t, 10, c.Pending())

	c.flush(context.Background())
	assert.Equal(t, 10, c.Pending())

	pub.err = nil
	c.flush(context.Background())
	assert.Equal(t, 10, pub.published())
	assert.Zero(t, c.Pending())
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator()
	start := agg.startTime
	agg.now = func() time.Time { return start.Add(2 * time.Minute) }

	handle := HandleEvent(agg)
	for _, e := range []RequestEvent{
		{Operation: "searchRetrieve", Version: "2.0", Query: "dog", TotalHits: 3, LatencyMs: 10, Resources: []string{"hdl:1"}},
		{Operation: "searchRetrieve", Version: "2.0", Query: "dog", TotalHits: 0, LatencyMs: 30},
		{Operation: "searchRetrieve", Version: "1.2", Query: "(", Diagnostic: "info:srw/diagnostic/1/13", LatencyMs: 20},
		{Operation: "explain", Version: "2.0", LatencyMs: 40},
	} {
		data, err := json.Marshal(e)
		require.NoError(t, err)
		require.NoError(t, handle(context.Background(), nil, data))
	}
	require.NoError(t, handle(context.Background(), nil, []byte("not json")))

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, map[string]int64{"searchRetrieve": 3, "explain": 1}, stats.ByOperation)
	assert.Equal(t, map[string]int64{"2.0": 3, "1.2": 1}, stats.ByVersion)
	assert.Equal(t, []Count{{Key: "info:srw/diagnostic/1/13", Count: 1}}, stats.Diagnostics)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, []Count{{Key: "dog", Count: 2}, {Key: "(", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []Count{{Key: "dog", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []Count{{Key: "hdl:1", Count: 1}}, stats.TopResources)
	assert.Equal(t, 25.0, stats.AvgLatencyMs)
	assert.Equal(t, int64(30), stats.P50LatencyMs)
	assert.Equal(t, int64(40), stats.P99LatencyMs)
	assert.Equal(t, 2.0, stats.RequestsPerMinute)
}

func TestTopNOrdersTiesByKey(t *testing.T) {
	got := topN(map[string]int64{"b": 1, "a": 1, "c": 5}, 2)
	assert.Equal(t, []Count{{Key: "c", Count: 5}, {Key: "a", Count: 1}}, got)
}

type fakeLister struct {
	snaps []Snapshot
	err   error
}

func (f fakeLister) ListSnapshots(_ context.Context, limit int) ([]Snapshot, error) {
	if len(f.snaps) > limit {
		return f.snaps[:limit], f.err
	}
	return f.snaps, f.err
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(RequestEvent{Operation: "explain", Version: "2.0"})

	rec := httptest.NewRecorder()
	NewHandler(agg, nil).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalRequests)

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	lister := fakeLister{snaps: []Snapshot{{Stats: Stats{TotalRequests: 7}}, {Stats: Stats{TotalRequests: 3}}}}
	rec = httptest.NewRecorder()
	NewHandler(agg, lister).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"total_requests":7`)

	rec = httptest.NewRecorder()
	NewHandler(agg, fakeLister{err: errors.New("db down")}).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
