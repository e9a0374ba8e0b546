package fcs

import (
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/cmdi"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/sru"
)

// Explain namespaces and identifiers.
const (
	NamespaceZeeRex              = "http://explain.z3950.org/dtd/2.0/"
	NamespaceEndpointDescription = "http://clarin.eu/fcs/endpoint-description"
	CapabilityBasicSearch        = "http://clarin.eu/fcs/capability/basic-search"
)

func (e *Endpoint) explain(p *sru.Params, resp *sru.Response) error {
	if d := sru.Validate(p); d != nil {
		return d
	}
	resp.AddRecord(sru.Record{Schema: NamespaceZeeRex, Payload: e.zeerex(resp.Version())})
	if p.FCSEndpointDescription {
		resp.AddExtraResponseData(e.endpointDescription())
	}
	return nil
}

func (e *Endpoint) zeerex(v sru.Version) *sru.Element {
	zr := sru.NewElement("zr:explain", sru.Attr{Name: "xmlns:zr", Value: NamespaceZeeRex})

	info := e.cfg.ServerInfo
	si := zr.AddElement("zr:serverInfo",
		sru.Attr{Name: "protocol", Value: "SRU"},
		sru.Attr{Name: "version", Value: string(v)},
		sru.Attr{Name: "transport", Value: info.Transport},
	)
	si.AddText("zr:host", info.Host)
	si.AddText("zr:port", strconv.Itoa(info.Port))
	si.AddText("zr:database", info.Database)

	db := zr.AddElement("zr:databaseInfo")
	for _, d := range e.cfg.DatabaseInfo {
		el := db.AddText("zr:"+d.Element, d.Text)
		if d.Lang != "" {
			el.SetAttr("lang", d.Lang)
		}
	}

	zr.AddElement("zr:schemaInfo").AddElement("zr:schema",
		sru.Attr{Name: "identifier", Value: sru.ResourceSchema},
		sru.Attr{Name: "name", Value: "fcs"},
	)

	ci := zr.AddElement("zr:configInfo")
	for _, c := range e.cfg.ConfigInfo {
		el := ci.AddText("zr:"+c.Element, c.Value)
		if c.Type != "" {
			el.SetAttr("type", c.Type)
		}
	}
	return zr
}

func (e *Endpoint) endpointDescription() *sru.Element {
	ed := sru.NewElement("ed:EndpointDescription",
		sru.Attr{Name: "xmlns:ed", Value: NamespaceEndpointDescription},
		sru.Attr{Name: "version", Value: "2"},
	)
	ed.AddElement("ed:Capabilities").AddText("ed:Capability", CapabilityBasicSearch)

	views := []string{DataViewHits}
	supported := ed.AddElement("ed:SupportedDataViews")
	supported.AddText("ed:SupportedDataView", MIMEHits,
		sru.Attr{Name: "id", Value: DataViewHits},
		sru.Attr{Name: "delivery-policy", Value: "send-by-default"},
	)
	if e.metadata != nil {
		views = append(views, DataViewCMDI)
		supported.AddText("ed:SupportedDataView", cmdi.MIMEType,
			sru.Attr{Name: "id", Value: DataViewCMDI},
			sru.Attr{Name: "delivery-policy", Value: "need-to-request"},
		)
	}

	resources := ed.AddElement("ed:Resources")
	for _, r := range e.cfg.Resources {
		res := resources.AddElement("ed:Resource", sru.Attr{Name: "pid", Value: r.PID})
		for _, t := range r.Titles {
			res.AddText("ed:Title", t.Text, sru.Attr{Name: "xml:lang", Value: t.Lang})
		}
		for _, d := range r.Descriptions {
			res.AddText("ed:Description", d.Text, sru.Attr{Name: "xml:lang", Value: d.Lang})
		}
		for _, u := range r.LandingPageURIs {
			res.AddText("ed:LandingPageURI", u)
		}
		langs := res.AddElement("ed:Languages")
		for _, l := range r.Languages {
			langs.AddText("ed:Language", l)
		}
		res.AddElement("ed:AvailableDataViews", sru.Attr{Name: "ref", Value: strings.Join(views, " ")})
	}
	return ed
}
