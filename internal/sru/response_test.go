package sru

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, r *Response) string {
	t.Helper()
	b, err := r.Bytes()
	require.NoError(t, err)
	return string(b)
}

func payload(text string) Node {
	return NewElement("p:x", Attr{Name: "xmlns:p", Value: "urn:p"}).Append(Text(text))
}

// =============================================================================
// XML model
// =============================================================================

func TestMarshalEscapes(t *testing.T) {
	e := NewElement("a", Attr{Name: "k", Value: `"<v>"`})
	e.AddText("b", "x < y & z")
	e.AddElement("c")
	e.Append(Raw(`<d>raw</d>`))
	assert.Equal(t, `<a k="&#34;&lt;v&gt;&#34;"><b>x &lt; y &amp; z</b><c/><d>raw</d></a>`, string(Marshal(e)))
}

// =============================================================================
// Diagnostics
// =============================================================================

func TestDiagnosticURIAndMessage(t *testing.T) {
	d := NewDiagnostic(7, "query")
	assert.Equal(t, "info:srw/diagnostic/1/7", d.URI())
	assert.Equal(t, "Mandatory parameter not supplied", d.Message())
	assert.Contains(t, d.Error(), "query")

	f := NewFCSDiagnostic(FCSInvalidDataView, "kwic")
	assert.Equal(t, "http://clarin.eu/fcs/diagnostic/4", f.URI())
	assert.Equal(t, "Requested Data View not valid for this resource.", f.Message())
}

func TestDiagnosticRendering(t *testing.T) {
	r := NewResponse(OpSearchRetrieve, Version12)
	r.AddDiagnostic(NewDiagnostic(7, "query"))
	r.AddDiagnostic(NewDiagnostic(4, ""))
	out := render(t, r)

	assert.Contains(t, out, `<sru:diagnostics xmlns:diag="http://www.loc.gov/zing/srw/diagnostic/">`+
		`<diag:diagnostic><diag:uri>info:srw/diagnostic/1/7</diag:uri><diag:details>query</diag:details>`+
		`<diag:message>Mandatory parameter not supplied</diag:message></diag:diagnostic>`+
		`<diag:diagnostic><diag:uri>info:srw/diagnostic/1/4</diag:uri>`+
		`<diag:message>Unsupported operation</diag:message></diag:diagnostic></sru:diagnostics>`)
}

func TestDiagnosticUnknownCodeFailsRendering(t *testing.T) {
	r := NewResponse(OpExplain, Version20)
	r.AddDiagnostic(NewDiagnostic(999, ""))
	_, err := r.Bytes()
	assert.Error(t, err)
}

// =============================================================================
// Response
// =============================================================================

func TestEmptySearchResponse(t *testing.T) {
	r := NewResponse(OpSearchRetrieve, Version20)
	assert.Equal(t, XMLHeader+
		`<sru:searchRetrieveResponse xmlns:sru="http://docs.oasis-open.org/ns/search-ws/sruResponse">`+
		`<sru:version>2.0</sru:version><sru:numberOfRecords>0</sru:numberOfRecords>`+
		`</sru:searchRetrieveResponse>`, render(t, r))
}

func TestSearchResponseLayout(t *testing.T) {
	r := NewResponse(OpSearchRetrieve, Version20)
	r.AddRecord(Record{Schema: ResourceSchema, Payload: payload("one"), Position: 3})
	r.AddRecord(Record{Schema: ResourceSchema, Payload: payload("two"), Identifier: "id-2", Position: 4})
	r.SetNumberOfRecords(6)
	r.SetNextRecordPosition(5)

	assert.Equal(t, XMLHeader+
		`<sru:searchRetrieveResponse xmlns:sru="http://docs.oasis-open.org/ns/search-ws/sruResponse">`+
		`<sru:version>2.0</sru:version><sru:numberOfRecords>6</sru:numberOfRecords><sru:records>`+
		`<sru:record><sru:recordSchema>http://clarin.eu/fcs/resource</sru:recordSchema>`+
		`<sru:recordXMLEscaping>xml</sru:recordXMLEscaping>`+
		`<sru:recordData><p:x xmlns:p="urn:p">one</p:x></sru:recordData>`+
		`<sru:recordPosition>3</sru:recordPosition></sru:record>`+
		`<sru:record><sru:recordSchema>http://clarin.eu/fcs/resource</sru:recordSchema>`+
		`<sru:recordXMLEscaping>xml</sru:recordXMLEscaping>`+
		`<sru:recordData><p:x xmlns:p="urn:p">two</p:x></sru:recordData>`+
		`<sru:recordIdentifier>id-2</sru:recordIdentifier>`+
		`<sru:recordPosition>4</sru:recordPosition></sru:record>`+
		`</sru:records><sru:nextRecordPosition>5</sru:nextRecordPosition>`+
		`<sru:resultCountPrecision>info:srw/vocabulary/resultCountPrecision/1/exact</sru:resultCountPrecision>`+
		`</sru:searchRetrieveResponse>`, render(t, r))
}

func TestVersion1Dialect(t *testing.T) {
	r := NewResponse(OpSearchRetrieve, Version12)
	r.AddRecord(Record{Schema: ResourceSchema, Payload: payload("one"), Position: 1})
	out := render(t, r)

	assert.Contains(t, out, `xmlns:sru="http://www.loc.gov/zing/srw/"`)
	assert.Contains(t, out, `<sru:recordPacking>xml</sru:recordPacking>`)
	assert.NotContains(t, out, "recordXMLEscaping")
	assert.NotContains(t, out, "resultCountPrecision")
	assert.Contains(t, out, `<sru:numberOfRecords>1</sru:numberOfRecords>`)
}

func TestScanNamespace(t *testing.T) {
	r := NewResponse(OpScan, Version20)
	r.AddDiagnostic(NewDiagnostic(DiagUnsupportedOperation, ""))
	out := render(t, r)

	assert.True(t, strings.HasPrefix(out, XMLHeader+
		`<sru:scanResponse xmlns:sru="http://docs.oasis-open.org/ns/search-ws/scan"><sru:version>2.0</sru:version>`))
	assert.Contains(t, out, `xmlns:diag="http://docs.oasis-open.org/ns/search-ws/diagnostic"`)
	assert.NotContains(t, out, "numberOfRecords")
}

func TestExplainRecordAndExtraData(t *testing.T) {
	r := NewResponse(OpExplain, Version20)
	r.AddRecord(Record{Schema: "http://explain.z3950.org/dtd/2.0/", Payload: payload("zr")})
	r.AddExtraResponseData(payload("ed"))
	out := render(t, r)

	assert.Contains(t, out, `<sru:version>2.0</sru:version><sru:record>`)
	assert.NotContains(t, out, "sru:records")
	assert.NotContains(t, out, "numberOfRecords")
	assert.True(t, strings.HasSuffix(out,
		`<sru:extraResponseData><p:x xmlns:p="urn:p">ed</p:x></sru:extraResponseData></sru:explainResponse>`))
}

func TestRecordCounting(t *testing.T) {
	t.Run("auto increment skips reserved slots", func(t *testing.T) {
		r := NewResponse(OpSearchRetrieve, Version20)
		r.AddRecord(Record{Payload: payload("a")})
		r.AddRecord(Record{})
		r.AddRecord(Record{Payload: payload("b")})
		assert.Equal(t, 2, r.NumberOfRecords())
	})

	t.Run("explicit count wins", func(t *testing.T) {
		r := NewResponse(OpSearchRetrieve, Version20)
		r.SetNumberOfRecords(42)
		r.AddRecord(Record{Payload: payload("a")})
		assert.Equal(t, 42, r.NumberOfRecords())
	})

	t.Run("reserved slot only elides container", func(t *testing.T) {
		r := NewResponse(OpSearchRetrieve, Version20)
		r.AddRecord(Record{})
		out := render(t, r)
		assert.NotContains(t, out, "sru:records")
		assert.NotContains(t, out, "resultCountPrecision")
		assert.Contains(t, out, `<sru:numberOfRecords>0</sru:numberOfRecords>`)
	})

	t.Run("discard", func(t *testing.T) {
		r := NewResponse(OpSearchRetrieve, Version20)
		r.AddRecord(Record{Payload: payload("a")})
		r.SetNextRecordPosition(2)
		r.DiscardRecords()
		r.AddDiagnostic(NewDiagnostic(DiagGeneralSystemError, ""))
		out := render(t, r)
		assert.NotContains(t, out, "sru:records")
		assert.NotContains(t, out, "nextRecordPosition")
		assert.Contains(t, out, "info:srw/diagnostic/1/1")
	})
}

func TestDiagnosticKeepsPartialRecords(t *testing.T) {
	r := NewResponse(OpSearchRetrieve, Version20)
	r.AddRecord(Record{Schema: ResourceSchema, Payload: payload("a"), Position: 1})
	r.AddDiagnostic(NewDiagnostic(DiagFirstRecordOutOfRange, ""))
	out := render(t, r)

	records := strings.Index(out, "<sru:records>")
	diags := strings.Index(out, "<sru:diagnostics")
	require.True(t, records > 0 && diags > 0)
	assert.Less(t, records, diags)
}

func TestRenderingIsIdempotent(t *testing.T) {
	r := NewResponse(OpSearchRetrieve, Version20)
	r.AddRecord(Record{Schema: ResourceSchema, Payload: payload("a & b"), Position: 1})
	r.AddDiagnostic(NewFCSDiagnostic(FCSQueryRewritten, ""))

	first := render(t, r)
	second := render(t, r)
	assert.Equal(t, first, second)
}
