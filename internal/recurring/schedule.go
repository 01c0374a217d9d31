// Package recurring schedules recurring rules and materializes their transactions.
//
// Each interval has its own Advancer strategy that moves a rule's next run
// date forward by exactly one period. Month-based intervals keep the rule's
// anchor day, clamped to the last day of shorter months.
package recurring

import (
	"fmt"

	"cashbook/internal/core"
)

// Advancer moves a next-run date forward by one interval. anchorDay is the
// day of month the rule was anchored on; day-based strategies ignore it.
type Advancer interface {
	Next(from core.Date, anchorDay int) core.Date
}

// DailyAdvancer adds one day.
type DailyAdvancer struct{}

func (DailyAdvancer) Next(from core.Date, _ int) core.Date {
	return from.AddDays(1)
}

// WeeklyAdvancer adds seven days.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(from core.Date, _ int) core.Date {
	return from.AddDays(7)
}

// MonthAdvancer adds Months calendar months.
type MonthAdvancer struct {
	Months int
}

// Next lands on anchorDay of the target month, or its last day when the
// month is shorter.
func (a MonthAdvancer) Next(from core.Date, anchorDay int) core.Date {
	return from.AddMonthsClamped(a.Months, anchorDay)
}

var advancers = map[core.Interval]Advancer{
	core.Daily:     DailyAdvancer{},
	core.Weekly:    WeeklyAdvancer{},
	core.Monthly:   MonthAdvancer{Months: 1},
	core.Quarterly: MonthAdvancer{Months: 3},
	core.Yearly:    MonthAdvancer{Months: 12},
}

// GetAdvancer returns the strategy for an interval.
func GetAdvancer(interval core.Interval) (Advancer, error) {
	a, ok := advancers[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidInterval, interval)
	}
	return a, nil
}

// RegisterAdvancer installs or replaces the strategy for an interval.
// It is not safe to call concurrently with GetAdvancer.
func RegisterAdvancer(interval core.Interval, a Advancer) {
	advancers[interval] = a
}

// AnchorDay returns the day of month a rule's schedule is pinned to.
func AnchorDay(r core.RecurringRule) int {
	if !r.AnchorDate.IsZero() {
		return r.AnchorDate.Day()
	}
	return r.NextRunDate.Day()
}

// NextRun returns the run date following the rule's current next run.
func NextRun(r core.RecurringRule) (core.Date, error) {
	a, err := GetAdvancer(r.Interval)
	if err != nil {
		return core.Date{}, err
	}
	return a.Next(r.NextRunDate, AnchorDay(r)), nil
}

// IsDue reports whether ref has reached the rule's next run date.
func IsDue(r core.RecurringRule, ref core.Date) bool {
	return !ref.Before(r.NextRunDate)
}
