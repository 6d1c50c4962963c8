package core

import (
	"fmt"
	"time"
)

// Period identifies one calendar month. Ordering uses the combined key
// year*100+month, which is total as long as month stays within 1..12.
type Period struct {
	Year  int
	Month int
}

func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) Validate() error {
	if p.Year <= 0 {
		return ErrInvalidYear
	}
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Key returns the comparable period key.
func (p Period) Key() int {
	return p.Year*100 + p.Month
}

// Prev returns the preceding calendar month, rolling over year boundaries.
func (p Period) Prev() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func (p Period) Before(other Period) bool {
	return p.Key() < other.Key()
}

func (p Period) After(other Period) bool {
	return p.Key() > other.Key()
}

// FirstDay returns midnight UTC on the first day of the month.
func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
