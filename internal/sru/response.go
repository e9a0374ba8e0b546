package sru

import (
	"bytes"
	"strconv"
)

// Record is one entry of a response. A nil Payload reserves a slot: the
// record is neither counted nor rendered.
type Record struct {
	Schema     string
	Payload    Node
	Identifier string
	Position   int
}

// Response accumulates the parts of one SRU response document. Element order
// in the output is fixed and independent of the order the setters are called
// in; rendering does not modify the response, so repeated calls to Bytes
// yield identical documents.
type Response struct {
	op      Operation
	version Version
	ns      namespaces

	records       []Record
	count         int
	explicitCount bool
	precision     string
	next          int

	diagnostics []*Diagnostic
	extra       []Node
}

// NewResponse starts a response for op in the dialect of version v.
func NewResponse(op Operation, v Version) *Response {
	return &Response{
		op:        op,
		version:   v,
		ns:        namespacesFor(op, v),
		precision: ResultCountExact,
	}
}

// Operation returns the operation the response answers.
func (r *Response) Operation() Operation { return r.op }

// Version returns the protocol version of the response.
func (r *Response) Version() Version { return r.version }

// AddRecord appends rec. Records with a payload increase the record count
// unless SetNumberOfRecords was called before.
func (r *Response) AddRecord(rec Record) {
	r.records = append(r.records, rec)
	if rec.Payload != nil && !r.explicitCount {
		r.count++
	}
}

// SetNumberOfRecords fixes the reported total. Later records no longer
// change it.
func (r *Response) SetNumberOfRecords(n int) {
	r.count = n
	r.explicitCount = true
}

// NumberOfRecords returns the total that will be reported.
func (r *Response) NumberOfRecords() int { return r.count }

// SetResultCountPrecision overrides the default exact precision URI.
func (r *Response) SetResultCountPrecision(uri string) { r.precision = uri }

// SetNextRecordPosition sets the position of the first record of the next
// page. Zero omits the element.
func (r *Response) SetNextRecordPosition(n int) { r.next = n }

// AddExtraResponseData appends a node to extraResponseData.
func (r *Response) AddExtraResponseData(n Node) { r.extra = append(r.extra, n) }

// AddDiagnostic appends d to the diagnostics container.
func (r *Response) AddDiagnostic(d *Diagnostic) { r.diagnostics = append(r.diagnostics, d) }

// Diagnostics returns the diagnostics added so far.
func (r *Response) Diagnostics() []*Diagnostic { return r.diagnostics }

// DiscardRecords drops every record and resets the count.
func (r *Response) DiscardRecords() {
	r.records = nil
	r.count = 0
	r.explicitCount = false
	r.next = 0
}

func (r *Response) name(local string) string { return "sru:" + local }

// Document builds the element tree of the response.
func (r *Response) Document() (*Element, error) {
	root := NewElement(r.name(string(r.op)+"Response"), Attr{Name: "xmlns:sru", Value: r.ns.sru})
	root.AddText(r.name("version"), string(r.version))

	withContainer := false
	switch r.op {
	case OpSearchRetrieve:
		root.AddText(r.name("numberOfRecords"), strconv.Itoa(r.count))
		if r.count > 0 && r.hasPayload() {
			withContainer = true
			container := root.AddElement(r.name("records"))
			for _, rec := range r.records {
				if rec.Payload != nil {
					container.Append(r.record(rec))
				}
			}
		}
	case OpExplain:
		for _, rec := range r.records {
			if rec.Payload != nil {
				root.Append(r.record(rec))
			}
		}
	}

	if len(r.diagnostics) > 0 {
		container := root.AddElement(r.name("diagnostics"), Attr{Name: "xmlns:diag", Value: r.ns.diag})
		for _, d := range r.diagnostics {
			e, err := d.element("diag")
			if err != nil {
				return nil, err
			}
			container.Append(e)
		}
	}

	if r.op == OpSearchRetrieve {
		if r.next > 0 {
			root.AddText(r.name("nextRecordPosition"), strconv.Itoa(r.next))
		}
		if withContainer && r.version.AtLeast20() {
			root.AddText(r.name("resultCountPrecision"), r.precision)
		}
	}

	if len(r.extra) > 0 {
		root.AddElement(r.name("extraResponseData")).Append(r.extra...)
	}
	return root, nil
}

func (r *Response) hasPayload() bool {
	for _, rec := range r.records {
		if rec.Payload != nil {
			return true
		}
	}
	return false
}

func (r *Response) record(rec Record) *Element {
	e := NewElement(r.name("record"))
	e.AddText(r.name("recordSchema"), rec.Schema)
	if r.version.AtLeast20() {
		e.AddText(r.name("recordXMLEscaping"), DefaultRecordXMLEscaping)
	} else {
		e.AddText(r.name("recordPacking"), DefaultRecordXMLEscaping)
	}
	e.AddElement(r.name("recordData")).Append(rec.Payload)
	if rec.Identifier != "" {
		e.AddText(r.name("recordIdentifier"), rec.Identifier)
	}
	if rec.Position > 0 {
		e.AddText(r.name("recordPosition"), strconv.Itoa(rec.Position))
	}
	return e
}

// Bytes serialises the response including the XML declaration.
func (r *Response) Bytes() ([]byte, error) {
	root, err := r.Document()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(XMLHeader)
	root.writeXML(&buf)
	return buf.Bytes(), nil
}
