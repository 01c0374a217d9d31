// Package search filters and paginates an owner's records by free text.
//
// A query is matched case-insensitively. When it matches the name of at
// least one category, only records in those categories are returned; note,
// currency and kind are consulted only when no category name matches.
package search

import (
	"fmt"
	"sort"
	"strings"

	"cashbook/internal/core"
)

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 50

type Entity string

const (
	Transactions Entity = "transactions"
	Budgets      Entity = "budgets"
	Rules        Entity = "rules"
)

func ParseEntity(s string) (Entity, error) {
	switch e := Entity(strings.ToLower(strings.TrimSpace(s))); e {
	case Transactions, Budgets, Rules:
		return e, nil
	case "":
		return Transactions, nil
	default:
		return "", fmt.Errorf("unknown entity %q", s)
	}
}

// Result is one page of matches. Page is zero based; Total counts every
// match across pages.
type Result[T any] struct {
	Items    []T
	Total    int
	Page     int
	PageSize int
	Pages    int
}

type fields struct {
	id       string
	date     core.Date
	category core.CategoryRef
	text     []string
}

func FilterTransactions(txs []core.Transaction, categories []core.Category, query string, page, pageSize int) Result[core.Transaction] {
	return filter(txs, categories, query, page, pageSize, func(tx core.Transaction) fields {
		return fields{
			id:       tx.ID,
			date:     tx.Date,
			category: tx.Category,
			text:     []string{tx.Note, string(tx.Currency), string(tx.Kind)},
		}
	})
}

func FilterBudgets(budgets []core.Budget, categories []core.Category, query string, page, pageSize int) Result[core.Budget] {
	return filter(budgets, categories, query, page, pageSize, func(b core.Budget) fields {
		return fields{
			id:       b.ID,
			date:     b.Month,
			category: core.CategoryID(b.CategoryID),
			text:     []string{string(b.Currency), b.Month.MonthKey()},
		}
	})
}

func FilterRules(rules []core.RecurringRule, categories []core.Category, query string, page, pageSize int) Result[core.RecurringRule] {
	return filter(rules, categories, query, page, pageSize, func(r core.RecurringRule) fields {
		return fields{
			id:       r.ID,
			date:     r.NextRunDate,
			category: r.Category,
			text:     []string{r.Note, string(r.Currency), string(r.Kind), string(r.Interval)},
		}
	})
}

func filter[T any](items []T, categories []core.Category, query string, page, pageSize int, fieldsOf func(T) fields) Result[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}

	q := strings.ToLower(strings.TrimSpace(query))
	matchedCats := make(map[string]bool)
	if q != "" {
		for _, c := range categories {
			if strings.Contains(strings.ToLower(c.Name), q) {
				matchedCats[c.ID] = true
			}
		}
	}

	type entry struct {
		item T
		f    fields
	}
	var hits []entry
	for _, it := range items {
		f := fieldsOf(it)
		if matches(f, q, matchedCats) {
			hits = append(hits, entry{item: it, f: f})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].f, hits[j].f
		if !a.date.Equal(b.date) {
			return a.date.After(b.date)
		}
		return a.id < b.id
	})

	res := Result[T]{
		Total:    len(hits),
		Page:     page,
		PageSize: pageSize,
		Pages:    (len(hits) + pageSize - 1) / pageSize,
	}
	start := page * pageSize
	if start >= len(hits) {
		res.Items = []T{}
		return res
	}
	end := min(start+pageSize, len(hits))
	res.Items = make([]T, 0, end-start)
	for _, h := range hits[start:end] {
		res.Items = append(res.Items, h.item)
	}
	return res
}

func matches(f fields, q string, matchedCats map[string]bool) bool {
	if q == "" {
		return true
	}
	if len(matchedCats) > 0 {
		id, ok := f.category.ID()
		return ok && matchedCats[id]
	}
	for _, s := range f.text {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}
