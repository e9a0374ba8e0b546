package hits

import "strings"

// Segment is a run of fragment text; Hit marks a matched term.
type Segment struct {
	Text string
	Hit  bool
}

// Highlight splits a fragment into alternating plain and matched segments.
// Empty runs are dropped. A start tag without a matching end tag is kept as
// plain text.
func Highlight(fragment, startTag, endTag string) []Segment {
	if startTag == "" || endTag == "" {
		return appendText(nil, fragment)
	}
	var out []Segment
	rest := fragment
	for {
		i := strings.Index(rest, startTag)
		if i < 0 {
			break
		}
		j := strings.Index(rest[i+len(startTag):], endTag)
		if j < 0 {
			break
		}
		out = appendText(out, rest[:i])
		hit := rest[i+len(startTag) : i+len(startTag)+j]
		if hit != "" {
			out = append(out, Segment{Text: hit, Hit: true})
		}
		rest = rest[i+len(startTag)+j+len(endTag):]
	}
	return appendText(out, rest)
}

func appendText(out []Segment, text string) []Segment {
	if text == "" {
		return out
	}
	return append(out, Segment{Text: text})
}
