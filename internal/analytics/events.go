// Package analytics publishes one event per SRU request to Kafka, aggregates
// consumed events into usage statistics and snapshots them to PostgreSQL.
package analytics

import "time"

// RequestEvent describes one answered SRU request.
type RequestEvent struct {
	Operation string `json:"operation"`
	Version   string `json:"version"`
	Query     string `json:"query,omitempty"`
	// Diagnostic is the URI of the first diagnostic, empty on success.
	Diagnostic string    `json:"diagnostic,omitempty"`
	Resources  []string  `json:"resources,omitempty"`
	DataViews  []string  `json:"data_views,omitempty"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// Failed reports whether the request ended with a diagnostic.
func (e RequestEvent) Failed() bool { return e.Diagnostic != "" }

// ZeroResult reports whether a successful search found nothing.
func (e RequestEvent) ZeroResult() bool {
	return e.Operation == "searchRetrieve" && !e.Failed() && e.TotalHits == 0
}
