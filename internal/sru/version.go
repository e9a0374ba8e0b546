// Package sru implements the protocol side of an SRU endpoint: request
// parameter normalisation and validation, the standard diagnostics catalogue
// and a version-aware response document builder.
package sru

import "strconv"

// Version is an SRU protocol version as sent by the client.
type Version string

const (
	Version11 Version = "1.1"
	Version12 Version = "1.2"
	Version20 Version = "2.0"

	// MaxVersion is the highest version the endpoint speaks.
	MaxVersion = Version20
)

// Supported reports whether v is 1.1, 1.2 or 2.0. "2" and "2.00" count as 2.0.
func (v Version) Supported() bool {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return false
	}
	return f == 1.1 || f == 1.2 || f == 2.0
}

// AtLeast20 reports whether v selects the SRU 2.0 dialect.
func (v Version) AtLeast20() bool {
	f, err := strconv.ParseFloat(string(v), 64)
	return err == nil && f >= 2.0
}

// Operation is an SRU operation name.
type Operation string

const (
	OpExplain        Operation = "explain"
	OpSearchRetrieve Operation = "searchRetrieve"
	OpScan           Operation = "scan"
)

// Known reports whether op is one of the three SRU operations.
func (op Operation) Known() bool {
	switch op {
	case OpExplain, OpSearchRetrieve, OpScan:
		return true
	}
	return false
}

// Namespaces.
const (
	NamespaceSRU1       = "http://www.loc.gov/zing/srw/"
	NamespaceDiag1      = "http://www.loc.gov/zing/srw/diagnostic/"
	NamespaceSRU2       = "http://docs.oasis-open.org/ns/search-ws/sruResponse"
	NamespaceScan2      = "http://docs.oasis-open.org/ns/search-ws/scan"
	NamespaceDiag2      = "http://docs.oasis-open.org/ns/search-ws/diagnostic"
	ResultCountExact    = "info:srw/vocabulary/resultCountPrecision/1/exact"
	ResultCountEstimate = "info:srw/vocabulary/resultCountPrecision/1/estimate"
)

type namespaces struct {
	sru  string
	diag string
}

func namespacesFor(op Operation, v Version) namespaces {
	if !v.AtLeast20() {
		return namespaces{sru: NamespaceSRU1, diag: NamespaceDiag1}
	}
	if op == OpScan {
		return namespaces{sru: NamespaceScan2, diag: NamespaceDiag2}
	}
	return namespaces{sru: NamespaceSRU2, diag: NamespaceDiag2}
}
