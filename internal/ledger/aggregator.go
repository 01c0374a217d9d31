// Package ledger folds transactions into per-currency or per-category totals.
//
// Aggregate is a pure function: it performs no I/O, never fails and returns
// the same report for the same input regardless of row order. Rows it cannot
// use are counted in Report.Skipped.
package ledger

import (
	"fmt"
	"sort"
	"strings"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
)

// Uncategorized is the group for expenses with no category or one that no
// longer exists.
const Uncategorized = "Uncategorized"

type GroupBy string

const (
	ByCurrency GroupBy = "currency"
	ByCategory GroupBy = "category"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case ByCurrency, ByCategory:
		return g, nil
	case "":
		return ByCurrency, nil
	default:
		return "", fmt.Errorf("unknown grouping %q", s)
	}
}

// Converter converts an amount between currencies. *fx.Converter satisfies it.
type Converter interface {
	Convert(amount decimal.Decimal, from, to core.CurrencyCode) (decimal.Decimal, error)
}

// GroupKey identifies one bucket of a report. For ByCurrency reports Group
// equals the currency code.
type GroupKey struct {
	Group    string
	Currency core.CurrencyCode
}

// Totals holds non-negative income and expense sums and their difference.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
	Count   int
}

func (t *Totals) add(kind core.Kind, amount decimal.Decimal) {
	if kind == core.Income {
		t.Income = t.Income.Add(amount)
		t.Net = t.Net.Add(amount)
	} else {
		t.Expense = t.Expense.Add(amount)
		t.Net = t.Net.Sub(amount)
	}
	t.Count++
}

// Row is one report bucket ready for rendering.
type Row struct {
	Key   GroupKey
	Label string
	Totals
}

type Report struct {
	Window  Window
	GroupBy GroupBy
	Groups  map[GroupKey]Totals
	Labels  map[string]string

	// Skipped counts malformed rows left out of the report.
	Skipped int
	// Approximate is set when at least one row could not be converted into
	// the requested currency and was kept in its own.
	Approximate bool
	Unconverted int
}

// Get returns the totals for a bucket, zero when absent.
func (r Report) Get(group string, currency core.CurrencyCode) Totals {
	return r.Groups[GroupKey{Group: group, Currency: currency}]
}

// Rows returns the buckets ordered by group then currency.
func (r Report) Rows() []Row {
	rows := make([]Row, 0, len(r.Groups))
	for k, t := range r.Groups {
		label := k.Group
		if l, ok := r.Labels[k.Group]; ok {
			label = l
		}
		rows = append(rows, Row{Key: k, Label: label, Totals: t})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Key.Group != rows[j].Key.Group {
			return rows[i].Key.Group < rows[j].Key.Group
		}
		return rows[i].Key.Currency < rows[j].Key.Currency
	})
	return rows
}

type options struct {
	conv     Converter
	target   core.CurrencyCode
	known    map[string]string
	hasKnown bool
}

type Option func(*options)

// WithConversion converts every row into target before accumulating.
func WithConversion(conv Converter, target core.CurrencyCode) Option {
	return func(o *options) {
		o.conv = conv
		o.target = target
	}
}

// WithCategories restricts category grouping to the given categories; ids
// outside the set are bucketed under Uncategorized. Names become row labels.
func WithCategories(categories []core.Category) Option {
	return func(o *options) {
		o.hasKnown = true
		o.known = make(map[string]string, len(categories))
		for _, c := range categories {
			o.known[c.ID] = c.Name
		}
	}
}

// Aggregate folds txs within w into totals grouped by by.
func Aggregate(txs []core.Transaction, w Window, by GroupBy, opts ...Option) Report {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if by == "" {
		by = ByCurrency
	}

	r := Report{
		Window:  w,
		GroupBy: by,
		Groups:  make(map[GroupKey]Totals),
		Labels:  map[string]string{Uncategorized: Uncategorized},
	}
	for id, name := range o.known {
		r.Labels[id] = name
	}

	for _, tx := range txs {
		if malformed(tx) {
			r.Skipped++
			continue
		}
		if !w.Contains(tx.Date) {
			continue
		}
		if by == ByCategory && tx.Kind != core.Expense {
			continue
		}

		amount, currency := tx.Amount, tx.Currency
		if o.conv != nil && o.target != "" && currency != o.target {
			converted, err := o.conv.Convert(amount, currency, o.target)
			if err != nil {
				r.Approximate = true
				r.Unconverted++
			} else {
				amount, currency = converted, o.target
			}
		}

		key := GroupKey{Group: string(currency), Currency: currency}
		if by == ByCategory {
			key.Group = o.categoryKey(tx.Category)
		}
		t := r.Groups[key]
		t.add(tx.Kind, amount.Round(core.Scale))
		r.Groups[key] = t
	}
	return r
}

func (o options) categoryKey(ref core.CategoryRef) string {
	id, ok := ref.ID()
	if !ok {
		return Uncategorized
	}
	if o.hasKnown {
		if _, known := o.known[id]; !known {
			return Uncategorized
		}
	}
	return id
}

func malformed(tx core.Transaction) bool {
	return !tx.Amount.IsPositive() ||
		!tx.Kind.Valid() ||
		tx.Currency.Validate() != nil ||
		tx.Date.IsZero()
}
