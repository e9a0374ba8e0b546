package fcs

import (
	"context"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/backend"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/cmdi"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/cql"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/hits"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/sru"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/tracing"
)

func (e *Endpoint) searchRetrieve(ctx context.Context, p *sru.Params, resp *sru.Response) (outcome, error) {
	if d := sru.Validate(p); d != nil {
		return outcome{}, d
	}
	if p.WantsDataView(DataViewCMDI) && e.metadata == nil {
		return outcome{}, sru.NewFCSDiagnostic(sru.FCSInvalidDataView, DataViewCMDI)
	}
	pids, err := e.resolveContext(p.Context())
	if err != nil {
		return outcome{}, err
	}
	params := p.ApplyDefaults(e.defaults)

	_, span := tracing.StartChild(ctx, "compile")
	tsquery, err := compile(params.Query)
	span.SetAttr("tsquery", tsquery)
	span.Fail(err)
	span.End()
	if err != nil {
		return outcome{}, err
	}

	page, err := e.runSearch(ctx, backend.Query{Tsquery: tsquery, PIDs: pids}, params.StartRecordN, params.MaximumRecordsN)
	if err != nil {
		return outcome{}, err
	}

	resp.SetNumberOfRecords(page.Total)
	var docs *cmdi.RequestCache
	if params.WantsDataView(DataViewCMDI) {
		docs = cmdi.NewRequestCache(e.metadata)
	}
	for _, f := range page.Fragments {
		resp.AddRecord(sru.Record{
			Schema:   sru.ResourceSchema,
			Payload:  e.resourcePayload(ctx, f, docs),
			Position: f.Position,
		})
	}
	resp.SetNextRecordPosition(page.Next)
	return outcome{total: page.Total, returned: len(page.Fragments)}, nil
}

func (e *Endpoint) scan(p *sru.Params) error {
	if d := sru.Validate(p); d != nil {
		return d
	}
	return sru.NewDiagnostic(sru.DiagUnsupportedOperation, "")
}

// resolveContext checks that every requested pid names a configured
// resource.
func (e *Endpoint) resolveContext(pids []string) ([]string, error) {
	for _, pid := range pids {
		if _, ok := e.resources[pid]; !ok {
			return nil, sru.NewFCSDiagnostic(sru.FCSInvalidPID, pid)
		}
	}
	return pids, nil
}

func compile(query string) (string, error) {
	q, err := cql.Parse(query)
	if err != nil {
		return "", queryDiagnostic(err)
	}
	tsquery, err := q.Tsquery()
	if err != nil {
		return "", queryDiagnostic(err)
	}
	return tsquery, nil
}

// queryDiagnostic maps a CQL failure to the SRU diagnostic reported to the
// client.
func queryDiagnostic(err error) *sru.Diagnostic {
	var pe *cql.ParseError
	if !errors.As(err, &pe) {
		return sru.NewDiagnostic(sru.DiagQuerySyntaxError, err.Error())
	}
	switch {
	case errors.Is(err, cql.ErrUnbalancedBrackets):
		return sru.NewDiagnostic(sru.DiagInvalidParentheses, "")
	case errors.Is(err, cql.ErrEmptyTerm):
		return sru.NewDiagnostic(sru.DiagEmptyTerm, "")
	case errors.Is(err, cql.ErrUnsupportedConstruct):
		switch {
		case pe.Token.IsRelation():
			return sru.NewDiagnostic(sru.DiagUnsupportedRelation, pe.Token.Text)
		case pe.Token.IsModifier():
			return sru.NewDiagnostic(sru.DiagUnsupportedModifier, pe.Token.Text)
		case pe.Token.IsBoolean():
			return sru.NewDiagnostic(sru.DiagUnsupportedBoolean, pe.Token.Text)
		}
	}
	return sru.NewDiagnostic(sru.DiagQuerySyntaxError, pe.Error())
}

// runSearch queries the backend and flattens the rows under the circuit
// breaker and the query timeout. Diagnostics raised while flattening and
// requests the client abandoned do not count against the breaker.
func (e *Endpoint) runSearch(ctx context.Context, q backend.Query, start, max int) (*hits.Page, error) {
	ctx, span := tracing.StartChild(ctx, "backend")
	defer span.End()
	begin := e.now()

	var page *hits.Page
	err := e.breaker.Execute(func() error {
		// The search goroutine may outlive WithTimeout; its page is only
		// taken from the return value.
		p, err := resilience.WithTimeout(ctx, e.queryTimeout, "full-text search", func(ctx context.Context) (*hits.Page, error) {
			rows, err := e.searcher.Search(ctx, q)
			if err != nil {
				return nil, err
			}
			defer rows.Close()
			return hits.Flatten(rows, start, max, e.markup)
		})
		page = p
		return err
	}, isDiagnostic, func(error) bool { return ctx.Err() != nil })

	result := "ok"
	var diag *sru.Diagnostic
	switch {
	case err == nil:
		span.SetAttr("total", page.Total)
	case errors.As(err, &diag):
		result = "diagnostic"
	case errors.Is(err, resilience.ErrCircuitOpen):
		result = "rejected"
		logger.FromContext(ctx).Warn("search backend rejected by circuit breaker", "error", err)
		diag = sru.NewDiagnostic(sru.DiagTemporarilyUnavailable, "")
	default:
		result = "error"
	}
	if e.metrics != nil {
		e.metrics.BackendLatency.WithLabelValues(result).Observe(e.now().Sub(begin).Seconds())
	}
	span.Fail(err)
	if diag != nil {
		return nil, diag
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func isDiagnostic(err error) bool {
	var d *sru.Diagnostic
	return errors.As(err, &d)
}
