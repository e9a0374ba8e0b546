package fcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/cmdi"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/hits"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/sru"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/tracing"
)

// Data views.
const (
	NamespaceHits = "http://clarin.eu/fcs/dataview/hits"
	MIMEHits      = "application/x-clarin-fcs-hits+xml"
	DataViewHits  = "hits"
	DataViewCMDI  = "cmdi"
)

// resourcePayload renders one fragment as fcs:Resource. With a fragment pid
// the hits view sits in an fcs:ResourceFragment and resource level views
// precede it.
func (e *Endpoint) resourcePayload(ctx context.Context, f hits.Fragment, docs *cmdi.RequestCache) *sru.Element {
	res := sru.NewElement("fcs:Resource",
		sru.Attr{Name: "xmlns:fcs", Value: sru.ResourceSchema},
		sru.Attr{Name: "pid", Value: f.Row.PID},
	)
	if ref := e.resourceRef(f.Row); ref != "" {
		res.SetAttr("ref", ref)
	}

	var metadata *sru.Element
	if docs != nil {
		metadata = e.cmdiDataView(ctx, f.Row, docs)
	}

	if f.Row.FragmentPID != "" {
		if metadata != nil {
			res.Append(metadata)
		}
		res.AddElement("fcs:ResourceFragment", sru.Attr{Name: "pid", Value: f.Row.FragmentPID}).
			Append(hitsDataView(f.Segments))
		return res
	}
	res.Append(hitsDataView(f.Segments))
	if metadata != nil {
		res.Append(metadata)
	}
	return res
}

func (e *Endpoint) resourceRef(row hits.Row) string {
	switch {
	case e.cfg.ResourceRefTemplate == "":
		return ""
	case strings.Contains(e.cfg.ResourceRefTemplate, "%s"):
		return fmt.Sprintf(e.cfg.ResourceRefTemplate, row.PID)
	default:
		return fmt.Sprintf(e.cfg.ResourceRefTemplate, row.ID)
	}
}

func hitsDataView(segments []hits.Segment) *sru.Element {
	view := sru.NewElement("fcs:DataView", sru.Attr{Name: "type", Value: MIMEHits})
	result := view.AddElement("hits:Result", sru.Attr{Name: "xmlns:hits", Value: NamespaceHits})
	for _, s := range segments {
		if s.Hit {
			result.AddText("hits:Hit", s.Text)
			continue
		}
		result.Append(sru.Text(s.Text))
	}
	return view
}

// cmdiDataView embeds the CMDI record of row. A record that cannot be
// located or fetched is left out; the search itself still succeeds.
func (e *Endpoint) cmdiDataView(ctx context.Context, row hits.Row, docs *cmdi.RequestCache) *sru.Element {
	log := logger.FromContext(ctx).With("component", "fcs", "pid", row.PID)
	u, err := cmdi.Locate(e.cmdiTemplate, row.CMDIPID)
	if err != nil {
		log.Debug("no CMDI record", "error", err)
		return nil
	}

	ctx, span := tracing.StartChild(ctx, "cmdi")
	span.SetAttr("url", u)
	doc, err := docs.Fetch(ctx, u)
	span.Fail(err)
	span.End()
	if err != nil {
		log.Warn("fetching CMDI record failed", "url", u, "error", err)
		return nil
	}

	view := sru.NewElement("fcs:DataView",
		sru.Attr{Name: "type", Value: cmdi.MIMEType},
		sru.Attr{Name: "pid", Value: row.CMDIPID},
		sru.Attr{Name: "ref", Value: u},
	)
	view.Append(sru.Raw(doc))
	return view
}
