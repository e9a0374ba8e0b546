package backend

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/hits"
)

// Scanner is the subset of *sql.Rows the cursor reads from.
type Scanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Rows adapts a Scanner to hits.Rows. A scan failure ends the iteration and
// is reported by Err.
type Rows struct {
	src Scanner
	cur hits.Row
	err error
}

// NewRows wraps src.
func NewRows(src Scanner) *Rows {
	return &Rows{src: src}
}

func (r *Rows) Next() bool {
	if r.err != nil || !r.src.Next() {
		return false
	}
	var row hits.Row
	if err := r.src.Scan(&row.ID, &row.PID, &row.CMDIPID, &row.FragmentPID, &row.HitsText); err != nil {
		r.err = fmt.Errorf("scanning search row: %w", err)
		return false
	}
	r.cur = row
	return true
}

func (r *Rows) Row() hits.Row { return r.cur }

func (r *Rows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.src.Err()
}

func (r *Rows) Close() error { return r.src.Close() }
