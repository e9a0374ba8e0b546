package sru

import (
	"bytes"
	"encoding/xml"
)

// XMLHeader prefixes every serialised response.
const XMLHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Node is a piece of an XML document.
type Node interface {
	writeXML(buf *bytes.Buffer)
}

// Attr is an attribute with an already prefixed name.
type Attr struct {
	Name  string
	Value string
}

// Element is an XML element with a prefixed name (e.g. "sru:version").
// Namespace declarations are ordinary xmlns attributes, so serialisation is
// fully determined by the order elements and attributes were added in.
type Element struct {
	Name     string
	Attrs    []Attr
	Children []Node
}

// NewElement returns an element with the given name and attributes.
func NewElement(name string, attrs ...Attr) *Element {
	return &Element{Name: name, Attrs: attrs}
}

// Append adds children and returns e.
func (e *Element) Append(children ...Node) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// AddElement appends a new child element and returns the child.
func (e *Element) AddElement(name string, attrs ...Attr) *Element {
	child := NewElement(name, attrs...)
	e.Children = append(e.Children, child)
	return child
}

// AddText appends a child element holding only text and returns the child.
func (e *Element) AddText(name, text string, attrs ...Attr) *Element {
	child := NewElement(name, attrs...)
	child.Children = append(child.Children, Text(text))
	e.Children = append(e.Children, child)
	return child
}

// SetAttr appends an attribute.
func (e *Element) SetAttr(name, value string) *Element {
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

func (e *Element) writeXML(buf *bytes.Buffer) {
	buf.WriteByte('<')
	buf.WriteString(e.Name)
	for _, a := range e.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Name)
		buf.WriteString(`="`)
		escape(buf, a.Value)
		buf.WriteByte('"')
	}
	if len(e.Children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	for _, c := range e.Children {
		c.writeXML(buf)
	}
	buf.WriteString("</")
	buf.WriteString(e.Name)
	buf.WriteByte('>')
}

// Text is character data.
type Text string

func (t Text) writeXML(buf *bytes.Buffer) {
	escape(buf, string(t))
}

// Raw is pre-serialised markup inserted verbatim. It must be well-formed and
// must not carry an XML declaration.
type Raw []byte

func (r Raw) writeXML(buf *bytes.Buffer) {
	buf.Write(r)
}

func escape(buf *bytes.Buffer, s string) {
	// bytes.Buffer writes never fail.
	_ = xml.EscapeText(buf, []byte(s))
}

// Marshal serialises a node without the XML declaration.
func Marshal(n Node) []byte {
	var buf bytes.Buffer
	n.writeXML(&buf)
	return buf.Bytes()
}
