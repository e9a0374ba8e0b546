package sru

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Parameter names as sent on the wire.
const (
	ParamOperation           = "operation"
	ParamVersion             = "version"
	ParamQuery               = "query"
	ParamScanClause          = "scanClause"
	ParamStartRecord         = "startRecord"
	ParamMaximumRecords      = "maximumRecords"
	ParamResponsePosition    = "responsePosition"
	ParamMaximumTerms        = "maximumTerms"
	ParamRecordXMLEscaping   = "recordXMLEscaping"
	ParamRecordSchema        = "recordSchema"
	ParamResultSetTTL        = "resultSetTTL"
	ParamRecordPacking       = "recordPacking"
	ParamQueryType           = "queryType"
	ParamSortKeys            = "sortKeys"
	ParamRenderedBy          = "renderedBy"
	ParamHTTPAccept          = "httpAccept"
	ParamStylesheet          = "stylesheet"
	ParamFCSContext          = "x-fcs-context"
	ParamFCSDataViews        = "x-fcs-dataviews"
	ParamFCSEndpointDesc     = "x-fcs-endpoint-description"
	ParamFCSRewritesAllowed  = "x-fcs-rewrites-allowed"
	DefaultHTTPAccept        = "application/sru+xml"
	DefaultRecordXMLEscaping = "xml"
)

// Params is the normalised parameter set of one request. Pagination values
// are kept raw until validation; StartRecordN and MaximumRecordsN are filled
// by ApplyDefaults.
type Params struct {
	Operation Operation
	Version   Version

	Query      string
	ScanClause string

	StartRecord      string
	MaximumRecords   string
	ResponsePosition string
	MaximumTerms     string

	RecordXMLEscaping string
	RecordSchema      string
	ResultSetTTL      string
	RecordPacking     string
	QueryType         string
	SortKeys          string
	RenderedBy        string
	HTTPAccept        string
	Stylesheet        string

	// FCSContext and FCSDataViews are never empty: an absent parameter
	// yields [""], which means no constraint.
	FCSContext             []string
	FCSDataViews           []string
	FCSEndpointDescription bool
	FCSRewritesAllowed     bool

	StartRecordN    int
	MaximumRecordsN int
}

// Normalize maps raw request values to Params. accept is the transport
// Accept header and defaultVersion the configured protocol version used when
// the request names none.
func Normalize(values url.Values, accept string, defaultVersion Version) Params {
	get := func(key string) string { return strings.TrimSpace(values.Get(key)) }

	p := Params{
		Operation:          Operation(get(ParamOperation)),
		Version:            Version(get(ParamVersion)),
		Query:              get(ParamQuery),
		ScanClause:         get(ParamScanClause),
		StartRecord:        get(ParamStartRecord),
		MaximumRecords:     get(ParamMaximumRecords),
		ResponsePosition:   get(ParamResponsePosition),
		MaximumTerms:       get(ParamMaximumTerms),
		RecordXMLEscaping:  get(ParamRecordXMLEscaping),
		RecordSchema:       get(ParamRecordSchema),
		ResultSetTTL:       get(ParamResultSetTTL),
		RecordPacking:      get(ParamRecordPacking),
		QueryType:          get(ParamQueryType),
		SortKeys:           get(ParamSortKeys),
		RenderedBy:         get(ParamRenderedBy),
		HTTPAccept:         get(ParamHTTPAccept),
		Stylesheet:         get(ParamStylesheet),
		FCSContext:         splitList(values.Get(ParamFCSContext)),
		FCSDataViews:       splitList(values.Get(ParamFCSDataViews)),
		FCSRewritesAllowed: get(ParamFCSRewritesAllowed) == "true",

		FCSEndpointDescription: get(ParamFCSEndpointDesc) == "true",
	}

	if p.Version == "" {
		p.Version = defaultVersion
	}
	if p.Operation == "" {
		switch {
		case p.Query != "":
			p.Operation = OpSearchRetrieve
		case p.ScanClause != "":
			p.Operation = OpScan
		default:
			p.Operation = OpExplain
		}
	}
	if p.RecordPacking == "" {
		if p.Version.AtLeast20() {
			p.RecordPacking = "packed"
		} else {
			p.RecordPacking = "xml"
		}
	}
	if p.RecordXMLEscaping == "" {
		p.RecordXMLEscaping = DefaultRecordXMLEscaping
	}
	if p.RenderedBy == "" {
		p.RenderedBy = "client"
	}
	if p.QueryType == "" {
		p.QueryType = "cql"
	}
	if p.HTTPAccept == "" {
		p.HTTPAccept = strings.TrimSpace(accept)
	}
	if p.HTTPAccept == "" {
		p.HTTPAccept = DefaultHTTPAccept
	}
	return p
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Defaults carries the configured pagination values.
type Defaults struct {
	MaximumRecords    int
	MaxAllowedRecords int
}

// ApplyDefaults returns a copy of p with the integer pagination fields set.
// It expects validated input; unparsable values fall back to the defaults
// and values too large for an int become math.MaxInt. MaximumRecordsN is
// capped at MaxAllowedRecords when that is positive.
func (p Params) ApplyDefaults(d Defaults) Params {
	p.StartRecordN = 1
	if n, ok := positiveInt(p.StartRecord); ok {
		p.StartRecordN = n
	}
	p.MaximumRecordsN = d.MaximumRecords
	if n, ok := positiveInt(p.MaximumRecords); ok {
		p.MaximumRecordsN = n
	}
	if d.MaxAllowedRecords > 0 && p.MaximumRecordsN > d.MaxAllowedRecords {
		p.MaximumRecordsN = d.MaxAllowedRecords
	}
	return p
}

func positiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(s, "-") {
		return math.MaxInt, true
	}
	return n, err == nil && n > 0
}

// Context returns the requested resource pids with empty entries removed.
func (p Params) Context() []string {
	return nonEmpty(p.FCSContext)
}

// DataViews returns the requested data view ids with empty entries removed.
func (p Params) DataViews() []string {
	return nonEmpty(p.FCSDataViews)
}

// WantsDataView reports whether the client asked for the data view id.
func (p Params) WantsDataView(id string) bool {
	for _, v := range p.FCSDataViews {
		if v == id {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
