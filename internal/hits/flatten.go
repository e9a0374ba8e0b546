// Package hits turns backend result rows into paginated, highlighted
// fragments. A row is one matched resource; each of its highlighted
// fragments is one countable record.
package hits

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/sru"
)

// Row is one matched resource as returned by the backend.
type Row struct {
	ID          int64
	PID         string
	CMDIPID     string
	FragmentPID string
	HitsText    string
}

// Rows is a forward-only cursor over backend rows.
type Rows interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Markup names the reserved sequences the backend uses inside HitsText.
type Markup struct {
	FragmentDelimiter string
	StartTag          string
	EndTag            string
}

// Fragment is a record of the returned page.
type Fragment struct {
	Row      Row
	Position int
	Segments []Segment
}

// Page is the result of Flatten.
type Page struct {
	Fragments []Fragment
	// Total is the exact number of fragments in the whole result.
	Total int
	// Next is the position of the first fragment of the following page, or 0.
	Next int
}

// Flatten reads rows to the end and returns the fragments numbered
// start..start+max-1 (1-based, counted across all rows) together with the
// exact total. Only the current row's fragments are held at a time, apart
// from the page itself. rows is not closed.
func Flatten(rows Rows, start, max int, m Markup) (*Page, error) {
	if start < 1 {
		start = 1
	}
	end := math.MaxInt
	if max < math.MaxInt-start {
		end = start + max
	}
	page := &Page{}
	record := 0
	for rows.Next() {
		row := rows.Row()
		for _, text := range splitFragments(row.HitsText, m.FragmentDelimiter) {
			record++
			if record < start || record >= end {
				continue
			}
			page.Fragments = append(page.Fragments, Fragment{
				Row:      row,
				Position: record,
				Segments: Highlight(text, m.StartTag, m.EndTag),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading backend rows: %w", err)
	}

	page.Total = record
	if start > record && (record > 0 || start > 1) {
		return nil, sru.NewDiagnostic(sru.DiagFirstRecordOutOfRange, strconv.Itoa(start))
	}
	if record >= end {
		page.Next = end
	}
	return page, nil
}

func splitFragments(text, delimiter string) []string {
	if delimiter == "" {
		return []string{text}
	}
	return strings.Split(text, delimiter)
}
