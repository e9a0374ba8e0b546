package sru

import (
	"fmt"
	"strconv"
)

// DiagnosticSet selects the catalogue a diagnostic code belongs to.
type DiagnosticSet int

const (
	SetSRU DiagnosticSet = iota
	SetFCS
)

const (
	sruDiagnosticPrefix = "info:srw/diagnostic/1/"
	fcsDiagnosticPrefix = "http://clarin.eu/fcs/diagnostic/"
)

// Frequently raised SRU diagnostic codes.
const (
	DiagGeneralSystemError        = 1
	DiagTemporarilyUnavailable    = 2
	DiagUnsupportedOperation      = 4
	DiagUnsupportedVersion        = 5
	DiagUnsupportedParameterValue = 6
	DiagMandatoryParameterMissing = 7
	DiagUnsupportedParameter      = 8
	DiagQuerySyntaxError          = 10
	DiagInvalidParentheses        = 13
	DiagUnsupportedRelation       = 19
	DiagUnsupportedModifier       = 20
	DiagEmptyTerm                 = 27
	DiagUnsupportedBoolean        = 37
	DiagFirstRecordOutOfRange     = 61
	DiagUnknownSchema             = 66
	DiagUnsupportedEscaping       = 71
	DiagSortNotSupported          = 80
	DiagStylesheetsNotSupported   = 110
)

// FCS diagnostic codes.
const (
	FCSInvalidPID          = 1
	FCSResourceSetAdjusted = 2
	FCSResourceSetTooLarge = 3
	FCSInvalidDataView     = 4
	FCSQuerySyntaxError    = 10
	FCSQueryTooComplex     = 11
	FCSQueryRewritten      = 12
	FCSProcessingHint      = 14
)

var sruMessages = map[int]string{
	1:   "General system error",
	2:   "System temporarily unavailable",
	3:   "Authentication error",
	4:   "Unsupported operation",
	5:   "Unsupported version",
	6:   "Unsupported parameter value",
	7:   "Mandatory parameter not supplied",
	8:   "Unsupported parameter",
	9:   "Unsupported combination of parameters",
	10:  "Query syntax error",
	12:  "Too many characters in query",
	13:  "Invalid or unsupported use of parentheses",
	14:  "Invalid or unsupported use of quotes",
	15:  "Unsupported context set",
	16:  "Unsupported index",
	18:  "Unsupported combination of indexes",
	19:  "Unsupported relation",
	20:  "Unsupported relation modifier",
	21:  "Unsupported combination of relation modifers",
	22:  "Unsupported combination of relation and index",
	23:  "Too many characters in term",
	24:  "Unsupported combination of relation and term",
	26:  "Non special character escaped in term",
	27:  "Empty term unsupported",
	28:  "Masking character not supported",
	29:  "Masked words too short",
	30:  "Too many masking characters in term",
	31:  "Anchoring character not supported",
	32:  "Anchoring character in unsupported position",
	33:  "Combination of proximity/adjacency and masking characters not supported",
	34:  "Combination of proximity/adjacency and anchoring characters not supported",
	35:  "Term contains only stopwords",
	36:  "Term in invalid format for index or relation",
	37:  "Unsupported boolean operator",
	38:  "Too many boolean operators in query",
	39:  "Proximity not supported",
	40:  "Unsupported proximity relation",
	41:  "Unsupported proximity distance",
	42:  "Unsupported proximity unit",
	43:  "Unsupported proximity ordering",
	44:  "Unsupported combination of proximity modifiers",
	46:  "Unsupported boolean modifier",
	47:  "Cannot process query; reason unknown",
	48:  "Query feature unsupported",
	49:  "Masking character in unsupported position",
	50:  "Result sets not supported",
	51:  "Result set does not exist",
	52:  "Result set temporarily unavailable",
	53:  "Result sets only supported for retrieval",
	55:  "Combination of result sets with search terms not supported",
	58:  "Result set created with unpredictable partial results available",
	59:  "Result set created with valid partial results available",
	60:  "Result set not created: too many matching records",
	61:  "First record position out of range",
	64:  "Record temporarily unavailable",
	65:  "Record does not exist",
	66:  "Unknown schema for retrieval",
	67:  "Record not available in this schema",
	68:  "Not authorized to send record",
	69:  "Not authorized to send record in this schema",
	70:  "Record too large to send",
	71:  "Unsupported recordXMLEscaping/recordPacking value",
	72:  "XPath retrieval unsupported",
	73:  "XPath expression contains unsupported feature",
	74:  "Unable to evaluate XPath expression",
	80:  "Sort not supported",
	82:  "Unsupported sort sequence",
	83:  "Too many records to sort",
	84:  "Too many sort keys to sort",
	86:  "Cannot sort: incompatible record formats",
	87:  "Unsupported schema for sort",
	88:  "Unsupported path for sort",
	89:  "Path unsupported for schema",
	90:  "Unsupported direction",
	91:  "Unsupported case",
	92:  "Unsupported missing value action",
	93:  "Sort ended due to missing value",
	94:  "Sort spec included both in query and protocol: query prevails",
	95:  "Sort spec included both in query and protocol: protocol prevails",
	96:  "Sort spec included both in query and protocol: error",
	103: "Stylesheets not supported",
	104: "Unsupported stylesheet",
	110: "Stylesheets not supported",
	111: "Unsupported stylesheet",
	120: "Response position out of range",
	121: "Too many terms requested",
	235: "Database does not exist",
}

var fcsMessages = map[int]string{
	1:  "Persistent identifier passed by the Client for restricting the search is invalid.",
	2:  "Resource set too large. Query context automatically adjusted.",
	3:  "Resource set too large. Cannot perform Query.",
	4:  "Requested Data View not valid for this resource.",
	10: "General query syntax error.",
	11: "Query too complex. Cannot perform Query.",
	12: "Query was rewritten.",
	14: "General processing hint.",
}

// Message returns the catalogue text for code in set.
func Message(set DiagnosticSet, code int) (string, bool) {
	var msg string
	var ok bool
	switch set {
	case SetSRU:
		msg, ok = sruMessages[code]
	case SetFCS:
		msg, ok = fcsMessages[code]
	}
	return msg, ok
}

// Diagnostic is a protocol-level error reported to the client inside the
// response document. It is an error so it can travel the normal return path
// up to the endpoint, where it is rendered once.
type Diagnostic struct {
	Set    DiagnosticSet
	Code   int
	Detail string
}

// NewDiagnostic returns an SRU diagnostic.
func NewDiagnostic(code int, detail string) *Diagnostic {
	return &Diagnostic{Set: SetSRU, Code: code, Detail: detail}
}

// NewFCSDiagnostic returns a CLARIN FCS diagnostic.
func NewFCSDiagnostic(code int, detail string) *Diagnostic {
	return &Diagnostic{Set: SetFCS, Code: code, Detail: detail}
}

// URI identifies the diagnostic, e.g. info:srw/diagnostic/1/7.
func (d *Diagnostic) URI() string {
	if d.Set == SetFCS {
		return fcsDiagnosticPrefix + strconv.Itoa(d.Code)
	}
	return sruDiagnosticPrefix + strconv.Itoa(d.Code)
}

// Message returns the catalogue text, or "" for an unknown code.
func (d *Diagnostic) Message() string {
	msg, _ := Message(d.Set, d.Code)
	return msg
}

func (d *Diagnostic) Error() string {
	if d.Detail == "" {
		return fmt.Sprintf("%s: %s", d.URI(), d.Message())
	}
	return fmt.Sprintf("%s: %s (%s)", d.URI(), d.Message(), d.Detail)
}

// element renders the diagnostic with the given prefix bound to the
// diagnostics namespace. Codes missing from the catalogue are a programming
// error and are reported instead of rendered.
func (d *Diagnostic) element(prefix string) (*Element, error) {
	msg, ok := Message(d.Set, d.Code)
	if !ok {
		return nil, fmt.Errorf("diagnostic %s is not in the catalogue", d.URI())
	}
	e := NewElement(prefix + ":diagnostic")
	e.AddText(prefix+":uri", d.URI())
	if d.Detail != "" {
		e.AddText(prefix+":details", d.Detail)
	}
	e.AddText(prefix+":message", msg)
	return e, nil
}
