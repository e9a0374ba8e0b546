package sru

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

// =============================================================================
// Normalize
// =============================================================================

func TestNormalizeInfersOperation(t *testing.T) {
	tests := []struct {
		name string
		in   url.Values
		want Operation
	}{
		{"query present", values("query", "dog"), OpSearchRetrieve},
		{"scan clause present", values("scanClause", "dc.title"), OpScan},
		{"nothing", values(), OpExplain},
		{"explicit wins", values("operation", "explain", "query", "dog"), OpExplain},
		{"unknown kept", values("operation", "fetch"), Operation("fetch")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Normalize(tc.in, "", Version20)
			assert.Equal(t, tc.want, p.Operation)
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	t.Run("version 2.0", func(t *testing.T) {
		p := Normalize(values(), "", Version20)
		assert.Equal(t, Version20, p.Version)
		assert.Equal(t, "packed", p.RecordPacking)
		assert.Equal(t, "xml", p.RecordXMLEscaping)
		assert.Equal(t, "client", p.RenderedBy)
		assert.Equal(t, "cql", p.QueryType)
		assert.Equal(t, DefaultHTTPAccept, p.HTTPAccept)
		assert.Equal(t, []string{""}, p.FCSContext)
		assert.Equal(t, []string{""}, p.FCSDataViews)
		assert.False(t, p.FCSEndpointDescription)
	})

	t.Run("version 1.2 from request", func(t *testing.T) {
		p := Normalize(values("version", "1.2"), "", Version20)
		assert.Equal(t, Version12, p.Version)
		assert.Equal(t, "xml", p.RecordPacking)
	})

	t.Run("accept header fallback", func(t *testing.T) {
		p := Normalize(values(), "text/html", Version20)
		assert.Equal(t, "text/html", p.HTTPAccept)

		p = Normalize(values("httpAccept", "application/xml"), "text/html", Version20)
		assert.Equal(t, "application/xml", p.HTTPAccept)
	})
}

func TestNormalizeFCSExtensions(t *testing.T) {
	p := Normalize(values(
		"x-fcs-context", "res1, res2",
		"x-fcs-dataviews", "cmdi",
		"x-fcs-endpoint-description", "true",
		"x-fcs-rewrites-allowed", "true",
	), "", Version20)

	assert.Equal(t, []string{"res1", "res2"}, p.FCSContext)
	assert.Equal(t, []string{"res1", "res2"}, p.Context())
	assert.Equal(t, []string{"cmdi"}, p.DataViews())
	assert.True(t, p.WantsDataView("cmdi"))
	assert.True(t, p.FCSEndpointDescription)
	assert.True(t, p.FCSRewritesAllowed)

	empty := Normalize(values(), "", Version20)
	assert.Empty(t, empty.Context())
	assert.False(t, empty.WantsDataView("cmdi"))
}

func TestApplyDefaults(t *testing.T) {
	d := Defaults{MaximumRecords: 10, MaxAllowedRecords: 100}

	p := Normalize(values("query", "dog"), "", Version20).ApplyDefaults(d)
	assert.Equal(t, 1, p.StartRecordN)
	assert.Equal(t, 10, p.MaximumRecordsN)

	p = Normalize(values("query", "dog", "startRecord", "21", "maximumRecords", "5"), "", Version20).ApplyDefaults(d)
	assert.Equal(t, 21, p.StartRecordN)
	assert.Equal(t, 5, p.MaximumRecordsN)

	p = Normalize(values("query", "dog", "maximumRecords", "5000"), "", Version20).ApplyDefaults(d)
	assert.Equal(t, 100, p.MaximumRecordsN)

	huge := "99999999999999999999"
	p = Normalize(values("query", "dog", "startRecord", huge, "maximumRecords", huge), "", Version20).ApplyDefaults(d)
	assert.Equal(t, math.MaxInt, p.StartRecordN)
	assert.Equal(t, 100, p.MaximumRecordsN)
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		in       url.Values
		wantSet  DiagnosticSet
		wantCode int
		detail   string
	}{
		{"unsupported version", values("version", "3.0"), SetSRU, 5, "2.0"},
		{"garbage version", values("version", "x"), SetSRU, 5, "2.0"},
		{"renderedBy server", values("renderedBy", "server"), SetSRU, 6, "renderedBy"},
		{"string escaping", values("recordXMLEscaping", "string"), SetSRU, 71, "string"},
		{"stylesheet", values("stylesheet", "http://x/s.xsl"), SetSRU, 110, ""},
		{"empty query", values("operation", "searchRetrieve"), SetSRU, 7, "query"},
		{"query type", values("query", "dog", "queryType", "xpath"), SetSRU, 6, "queryType"},
		{"startRecord not a number", values("query", "dog", "startRecord", "abc"), SetSRU, 6, "startRecord"},
		{"maximumRecords zero", values("query", "dog", "maximumRecords", "0"), SetSRU, 6, "maximumRecords"},
		{"maximumRecords leading zero", values("query", "dog", "maximumRecords", "05"), SetSRU, 6, "maximumRecords"},
		{"result set ttl", values("query", "dog", "resultSetTTL", "60"), SetSRU, 8, "resultSetTTL"},
		{"foreign schema", values("query", "dog", "recordSchema", "info:srw/schema/1/dc-v1.1"), SetSRU, 66, "info:srw/schema/1/dc-v1.1"},
		{"unpacked in 2.0", values("query", "dog", "recordPacking", "unpacked"), SetSRU, 6, "recordPacking"},
		{"string packing in 1.2", values("version", "1.2", "query", "dog", "recordPacking", "string"), SetSRU, 71, "string"},
		{"unknown dataview", values("query", "dog", "x-fcs-dataviews", "kwic"), SetFCS, 4, "kwic"},
		{"empty dataview among others", values("query", "dog", "x-fcs-dataviews", "cmdi,"), SetFCS, 4, ""},
		{"sort keys", values("query", "dog", "sortKeys", "title"), SetSRU, 80, ""},
		{"empty scan clause", values("operation", "scan"), SetSRU, 7, "scanClause"},
		{"bad maximumTerms", values("scanClause", "a", "maximumTerms", "-1"), SetSRU, 6, "maximumTerms"},
		{"bad responsePosition", values("scanClause", "a", "responsePosition", "x"), SetSRU, 6, "responsePosition"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Normalize(tc.in, "", Version20)
			d := Validate(&p)
			require.NotNil(t, d)
			assert.Equal(t, tc.wantSet, d.Set)
			assert.Equal(t, tc.wantCode, d.Code)
			assert.Equal(t, tc.detail, d.Detail)
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name string
		in   url.Values
	}{
		{"explain", values()},
		{"explain 1.1", values("version", "1.1")},
		{"short version", values("version", "2")},
		{"search", values("query", "dog", "startRecord", "3", "maximumRecords", "2")},
		{"search 1.2", values("version", "1.2", "query", "dog")},
		{"search terms", values("query", "dog", "queryType", "searchTerms")},
		{"fcs schema", values("query", "dog", "recordSchema", ResourceSchema)},
		{"cmdi dataview", values("query", "dog", "x-fcs-dataviews", "cmdi")},
		{"scan", values("scanClause", "dc.title", "maximumTerms", "10")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Normalize(tc.in, "", Version20)
			assert.Nil(t, Validate(&p))
		})
	}
}

func TestValidateFirstRuleWins(t *testing.T) {
	p := Normalize(values("version", "3.0", "operation", "searchRetrieve", "startRecord", "abc"), "", Version20)
	d := Validate(&p)
	require.NotNil(t, d)
	assert.Equal(t, DiagUnsupportedVersion, d.Code)
}
