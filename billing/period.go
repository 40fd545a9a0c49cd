package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Monthly billing period with a total order
// =============================================================================

// Period identifies one billing month. Cycles for a tenant are totally
// ordered by (Year, Month); at most one cycle exists per period.
type Period struct {
	Year  int
	Month time.Month
}

func NewPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Valid reports whether the period is well-formed.
// Year bounds guard against unconverted zero values and typos.
func (p Period) Valid() bool {
	return p.Month >= time.January && p.Month <= time.December &&
		p.Year >= 2000 && p.Year <= 2200
}

// Index maps the period onto a single integer preserving chronological
// order. Used as the sort key for chain walks.
func (p Period) Index() int {
	return p.Year*12 + int(p.Month) - 1
}

func (p Period) Equal(o Period) bool  { return p.Index() == o.Index() }
func (p Period) Before(o Period) bool { return p.Index() < o.Index() }
func (p Period) After(o Period) bool  { return p.Index() > o.Index() }

func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

func (p Period) Prev() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// String renders as "2025-03".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParsePeriod parses the "2006-01" form produced by String.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	p := Period{Year: t.Year(), Month: t.Month()}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}
