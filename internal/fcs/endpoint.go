// Package fcs implements the CLARIN Federated Content Search endpoint: it
// dispatches SRU requests to the explain, searchRetrieve and scan handlers
// and renders their responses.
package fcs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/backend"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/cmdi"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/hits"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/sru"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/tracing"
)

// ContentType of every SRU response.
const ContentType = "application/xml"

// EventRecorder receives one event per answered request.
type EventRecorder interface {
	Track(event analytics.RequestEvent)
}

// Deps are the collaborators of an Endpoint. Only Searcher is required.
type Deps struct {
	Endpoint config.EndpointConfig
	Backend  config.BackendConfig
	CMDI     config.CMDIConfig

	Searcher backend.Searcher
	// Metadata fetches CMDI records; the cmdi data view is not offered
	// when it is nil.
	Metadata cmdi.Fetcher
	Breaker  *resilience.CircuitBreaker
	Metrics  *metrics.Metrics
	Events   EventRecorder
	Tracer   *tracing.Tracer
}

// Endpoint is the http.Handler of the SRU interface.
type Endpoint struct {
	cfg            config.EndpointConfig
	defaultVersion sru.Version
	defaults       sru.Defaults
	markup         hits.Markup
	queryTimeout   time.Duration
	cmdiTemplate   string
	resources      map[string]struct{}

	searcher backend.Searcher
	metadata cmdi.Fetcher
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	events   EventRecorder
	tracer   *tracing.Tracer
	now      func() time.Time
}

// New creates an Endpoint. Without a breaker in d one is created from the
// backend configuration.
func New(d Deps) *Endpoint {
	version := sru.Version(d.Endpoint.DefaultVersion)
	if !version.Supported() {
		version = sru.MaxVersion
	}
	breaker := d.Breaker
	if breaker == nil {
		cbCfg := resilience.CircuitBreakerConfig{
			FailureThreshold: d.Backend.BreakerFailures,
			ResetTimeout:     d.Backend.BreakerReset,
		}
		if m := d.Metrics; m != nil {
			cbCfg.OnStateChange = func(name string, _, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		}
		breaker = resilience.NewCircuitBreaker("search-backend", cbCfg)
	}
	resources := make(map[string]struct{}, len(d.Endpoint.Resources))
	for _, r := range d.Endpoint.Resources {
		resources[r.PID] = struct{}{}
	}
	return &Endpoint{
		cfg:            d.Endpoint,
		defaultVersion: version,
		defaults: sru.Defaults{
			MaximumRecords:    d.Endpoint.MaximumRecords,
			MaxAllowedRecords: d.Endpoint.MaxAllowedRecords,
		},
		markup:       backend.MarkupOf(d.Backend),
		queryTimeout: d.Backend.QueryTimeout,
		cmdiTemplate: d.CMDI.URLTemplate,
		resources:    resources,
		searcher:     d.Searcher,
		metadata:     d.Metadata,
		breaker:      breaker,
		metrics:      d.Metrics,
		events:       d.Events,
		tracer:       d.Tracer,
		now:          time.Now,
	}
}

// outcome collects what the request log line and the analytics event need.
type outcome struct {
	total    int
	returned int
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := e.now()
	log := logger.FromContext(r.Context()).With("component", "fcs")

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		log.Warn("method not allowed", "method", r.Method)
		apperrors.Write(w, apperrors.New(apperrors.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "Method not allowed"))
		return
	}
	if err := r.ParseForm(); err != nil {
		log.Warn("malformed request", "error", err)
		apperrors.Write(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "Malformed request: %v", err))
		return
	}
	values := r.URL.Query()
	if r.Method == http.MethodPost {
		values = r.PostForm
	}

	params := sru.Normalize(values, r.Header.Get("Accept"), e.defaultVersion)
	if !params.Operation.Known() {
		log.Warn("unknown operation", "operation", params.Operation)
		apperrors.Write(w, apperrors.Newf(apperrors.ErrUnknownOperation, http.StatusBadRequest, "Unknown operation %s", params.Operation))
		return
	}

	version := params.Version
	if !version.Supported() {
		version = e.defaultVersion
	}
	ctx, span := e.tracer.Start(r.Context(), string(params.Operation), logger.RequestID(r.Context()))
	span.SetAttr("version", string(version))

	resp := sru.NewResponse(params.Operation, version)
	out, err := e.dispatch(ctx, &params, resp)
	if err != nil {
		var diag *sru.Diagnostic
		if !errors.As(err, &diag) {
			log.Error("request failed", "operation", params.Operation, "error", err)
			resp.DiscardRecords()
			diag = sru.NewDiagnostic(sru.DiagGeneralSystemError, "")
		}
		resp.AddDiagnostic(diag)
		span.Fail(err)
	}

	body, err := resp.Bytes()
	if err != nil {
		log.Error("rendering response failed", "error", err)
		span.Fail(err)
		e.tracer.Finish(span)
		apperrors.Write(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "Internal server error"))
		return
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Debug("writing response failed", "error", err)
	}

	e.tracer.Finish(span)
	e.observe(r.Context(), log, &params, resp, out, e.now().Sub(start))
}

func (e *Endpoint) dispatch(ctx context.Context, p *sru.Params, resp *sru.Response) (outcome, error) {
	switch p.Operation {
	case sru.OpExplain:
		return outcome{}, e.explain(p, resp)
	case sru.OpScan:
		return outcome{}, e.scan(p)
	default:
		return e.searchRetrieve(ctx, p, resp)
	}
}

func (e *Endpoint) observe(ctx context.Context, log *slog.Logger, p *sru.Params, resp *sru.Response, out outcome, latency time.Duration) {
	code, uri := 0, ""
	if diags := resp.Diagnostics(); len(diags) > 0 {
		code, uri = diags[0].Code, diags[0].URI()
	}
	log.Info("sru request",
		"operation", p.Operation,
		"version", resp.Version(),
		"diagnostic", code,
		"records", out.returned,
		"total", out.total,
		"latency_ms", latency.Milliseconds(),
	)

	if e.metrics != nil {
		result := "ok"
		if uri != "" {
			result = "diagnostic"
			for _, d := range resp.Diagnostics() {
				e.metrics.DiagnosticsTotal.WithLabelValues(d.URI()).Inc()
			}
		}
		e.metrics.SRURequestsTotal.WithLabelValues(string(p.Operation), string(resp.Version()), result).Inc()
		if p.Operation == sru.OpSearchRetrieve && uri == "" {
			e.metrics.RecordsReturned.Observe(float64(out.returned))
			e.metrics.TotalHits.Observe(float64(out.total))
		}
	}

	if e.events != nil {
		e.events.Track(analytics.RequestEvent{
			Operation:  string(p.Operation),
			Version:    string(resp.Version()),
			Query:      strings.TrimSpace(p.Query + p.ScanClause),
			Diagnostic: uri,
			Resources:  p.Context(),
			DataViews:  p.DataViews(),
			TotalHits:  out.total,
			Returned:   out.returned,
			LatencyMs:  latency.Milliseconds(),
			Timestamp:  e.now().UTC(),
			RequestID:  logger.RequestID(ctx),
		})
	}
}
