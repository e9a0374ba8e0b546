package sru

import "regexp"

// ResourceSchema is the only record schema the endpoint serves.
const ResourceSchema = "http://clarin.eu/fcs/resource"

var positiveInt = regexp.MustCompile(`^[1-9][0-9]*$`)

// rule inspects one aspect of the parameters and returns the diagnostic to
// raise, or nil.
type rule func(p *Params) *Diagnostic

var commonRules = []rule{
	func(p *Params) *Diagnostic {
		if !p.Version.Supported() {
			return NewDiagnostic(DiagUnsupportedVersion, string(MaxVersion))
		}
		return nil
	},
	func(p *Params) *Diagnostic {
		if p.RenderedBy != "client" {
			return NewDiagnostic(DiagUnsupportedParameterValue, ParamRenderedBy)
		}
		return nil
	},
	func(p *Params) *Diagnostic {
		if p.RecordXMLEscaping != DefaultRecordXMLEscaping {
			return NewDiagnostic(DiagUnsupportedEscaping, p.RecordXMLEscaping)
		}
		return nil
	},
	func(p *Params) *Diagnostic {
		if p.Stylesheet != "" {
			return NewDiagnostic(DiagStylesheetsNotSupported, "")
		}
		return nil
	},
}

var searchRules = []rule{
	func(p *Params) *Diagnostic {
		if p.Query == "" {
			return NewDiagnostic(DiagMandatoryParameterMissing, ParamQuery)
		}
		return nil
	},
	func(p *Params) *Diagnostic {
		if p.QueryType != "cql" && p.QueryType != "searchTerms" {
			return NewDiagnostic(DiagUnsupportedParameterValue, ParamQueryType)
		}
		return nil
	},
	positiveIntRule(ParamStartRecord, func(p *Params) string { return p.StartRecord }),
	positiveIntRule(ParamMaximumRecords, func(p *Params) string { return p.MaximumRecords }),
	func(p *Params) *Diagnostic {
		if p.ResultSetTTL != "" {
			return NewDiagnostic(DiagUnsupportedParameter, ParamResultSetTTL)
		}
		return nil
	},
	func(p *Params) *Diagnostic {
		if p.RecordSchema != "" && p.RecordSchema != ResourceSchema {
			return NewDiagnostic(DiagUnknownSchema, p.RecordSchema)
		}
		return nil
	},
	func(p *Params) *Diagnostic {
		if p.Version.AtLeast20() {
			if p.RecordPacking != "packed" {
				return NewDiagnostic(DiagUnsupportedParameterValue, ParamRecordPacking)
			}
			return nil
		}
		if p.RecordPacking != "xml" {
			return NewDiagnostic(DiagUnsupportedEscaping, p.RecordPacking)
		}
		return nil
	},
	func(p *Params) *Diagnostic {
		for _, v := range p.FCSDataViews {
			if v == "cmdi" || (v == "" && len(p.FCSDataViews) == 1) {
				continue
			}
			return NewFCSDiagnostic(FCSInvalidDataView, v)
		}
		return nil
	},
	func(p *Params) *Diagnostic {
		if p.SortKeys != "" {
			return NewDiagnostic(DiagSortNotSupported, "")
		}
		return nil
	},
}

var scanRules = []rule{
	func(p *Params) *Diagnostic {
		if p.ScanClause == "" {
			return NewDiagnostic(DiagMandatoryParameterMissing, ParamScanClause)
		}
		return nil
	},
	positiveIntRule(ParamResponsePosition, func(p *Params) string { return p.ResponsePosition }),
	positiveIntRule(ParamMaximumTerms, func(p *Params) string { return p.MaximumTerms }),
}

func positiveIntRule(name string, field func(p *Params) string) rule {
	return func(p *Params) *Diagnostic {
		if v := field(p); v != "" && !positiveInt.MatchString(v) {
			return NewDiagnostic(DiagUnsupportedParameterValue, name)
		}
		return nil
	}
}

// Validate applies the common rules and then the rules of p.Operation, and
// returns the diagnostic of the first rule that fails.
func Validate(p *Params) *Diagnostic {
	rules := commonRules
	switch p.Operation {
	case OpSearchRetrieve:
		rules = append(rules[:len(rules):len(rules)], searchRules...)
	case OpScan:
		rules = append(rules[:len(rules):len(rules)], scanRules...)
	}
	for _, r := range rules {
		if d := r(p); d != nil {
			return d
		}
	}
	return nil
}
