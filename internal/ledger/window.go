package ledger

import (
	"fmt"
	"strings"

	"cashbook/internal/core"
)

type windowKind uint8

const (
	lifetime windowKind = iota
	month
	dateRange
)

// Window is the time range a report covers. Bounds are inclusive.
type Window struct {
	kind       windowKind
	start, end core.Date
}

// Lifetime matches every date.
func Lifetime() Window {
	return Window{kind: lifetime}
}

// Month matches the calendar month containing d.
func Month(d core.Date) Window {
	return Window{kind: month, start: d.MonthStart(), end: d.MonthEnd()}
}

// Range matches start <= date <= end. It is empty when end precedes start.
func Range(start, end core.Date) Window {
	return Window{kind: dateRange, start: start, end: end}
}

func (w Window) Contains(d core.Date) bool {
	if w.kind == lifetime {
		return true
	}
	return !d.Before(w.start) && !d.After(w.end)
}

// Bounds returns the inclusive bounds. ok is false for Lifetime.
func (w Window) Bounds() (start, end core.Date, ok bool) {
	return w.start, w.end, w.kind != lifetime
}

func (w Window) String() string {
	switch w.kind {
	case month:
		return "month " + w.start.MonthKey()
	case dateRange:
		return "range " + w.start.String() + ".." + w.end.String()
	default:
		return "lifetime"
	}
}

// ParseWindow builds a window from request parameters. kind is one of
// lifetime, month or range; monthStr is YYYY-MM, start and end YYYY-MM-DD.
// An empty month defaults to the month of today.
func ParseWindow(kind, monthStr, start, end string, today core.Date) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "lifetime":
		return Lifetime(), nil
	case "month":
		if strings.TrimSpace(monthStr) == "" {
			return Month(today), nil
		}
		m, err := core.ParseMonth(monthStr)
		if err != nil {
			return Window{}, err
		}
		return Month(m), nil
	case "range":
		s, err := core.ParseDate(start)
		if err != nil {
			return Window{}, fmt.Errorf("start: %w", err)
		}
		e, err := core.ParseDate(end)
		if err != nil {
			return Window{}, fmt.Errorf("end: %w", err)
		}
		if e.Before(s) {
			return Window{}, fmt.Errorf("%w: end %s before start %s", core.ErrInvalidDate, e, s)
		}
		return Range(s, e), nil
	default:
		return Window{}, fmt.Errorf("unknown window %q", kind)
	}
}
