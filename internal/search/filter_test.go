package search

import (
	"fmt"
	"testing"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var categories = []core.Category{
	{ID: "c-food", Name: "Food", Kind: core.Expense},
	{ID: "c-transport", Name: "Transport", Kind: core.Expense},
	{ID: "c-salary", Name: "Salary", Kind: core.Income},
}

func tx(id string, date core.Date, cat, note string, cur core.CurrencyCode, kind core.Kind) core.Transaction {
	return core.Transaction{
		ID:       id,
		OwnerID:  "u1",
		Amount:   decimal.NewFromInt(1),
		Currency: cur,
		Kind:     kind,
		Date:     date,
		Note:     note,
		Category: core.CategoryID(cat),
	}
}

func fixtures() []core.Transaction {
	return []core.Transaction{
		tx("t1", core.NewDate(2025, 6, 1), "c-food", "groceries", "USD", core.Expense),
		tx("t2", core.NewDate(2025, 6, 3), "c-transport", "paid for transport of food items", "SSP", core.Expense),
		tx("t3", core.NewDate(2025, 6, 2), "c-food", "", "KES", core.Expense),
		tx("t4", core.NewDate(2025, 6, 2), "c-salary", "june pay", "USD", core.Income),
		tx("t5", core.NewDate(2025, 5, 30), "", "bus ticket", "SSP", core.Expense),
	}
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}

func TestCategoryFirstPrecedence(t *testing.T) {
	res := FilterTransactions(fixtures(), categories, "food", 0, 0)
	assert.Equal(t, []string{"t3", "t1"}, ids(res.Items))
	assert.Equal(t, 2, res.Total)
}

func TestFallbackToNoteCurrencyKind(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"BUS", []string{"t5"}},
		{"ssp", []string{"t2", "t5"}},
		{"income", []string{"t4"}},
		{"nothing-matches", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := FilterTransactions(fixtures(), categories, tt.query, 0, 0)
			assert.Equal(t, tt.want, ids(res.Items))
		})
	}
}

func TestEmptyQueryReturnsAllOrdered(t *testing.T) {
	res := FilterTransactions(fixtures(), categories, "  ", 0, 0)
	// date desc, ties by id asc
	assert.Equal(t, []string{"t2", "t3", "t4", "t1", "t5"}, ids(res.Items))
	assert.Equal(t, DefaultPageSize, res.PageSize)
	assert.Equal(t, 1, res.Pages)
}

func TestPagination(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 120; i++ {
		txs = append(txs, tx(fmt.Sprintf("t%03d", i), core.NewDate(2025, 1, 1).AddDays(i), "", "", "USD", core.Expense))
	}

	first := FilterTransactions(txs, nil, "", 0, 0)
	require.Len(t, first.Items, 50)
	assert.Equal(t, 120, first.Total)
	assert.Equal(t, 3, first.Pages)
	assert.Equal(t, "t119", first.Items[0].ID)

	last := FilterTransactions(txs, nil, "", 2, 0)
	require.Len(t, last.Items, 20)
	assert.Equal(t, "t000", last.Items[19].ID)

	beyond := FilterTransactions(txs, nil, "", 9, 0)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 120, beyond.Total)

	small := FilterTransactions(txs, nil, "", -1, 7)
	assert.Equal(t, 0, small.Page)
	assert.Len(t, small.Items, 7)
}

func TestFilterRulesAndBudgets(t *testing.T) {
	rules := []core.RecurringRule{
		{ID: "r1", Category: core.CategoryID("c-salary"), Interval: core.Monthly, Currency: "USD", Kind: core.Income, NextRunDate: core.NewDate(2025, 7, 1)},
		{ID: "r2", Interval: core.Weekly, Currency: "SSP", Kind: core.Expense, Note: "water", NextRunDate: core.NewDate(2025, 6, 20)},
	}
	res := FilterRules(rules, categories, "weekly", 0, 0)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "r2", res.Items[0].ID)

	res = FilterRules(rules, categories, "sal", 0, 0)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "r1", res.Items[0].ID)

	budgets := []core.Budget{
		{ID: "b1", CategoryID: "c-food", Month: core.NewDate(2025, 6, 1), Currency: "USD"},
		{ID: "b2", CategoryID: "c-transport", Month: core.NewDate(2025, 7, 1), Currency: "SSP"},
	}
	bres := FilterBudgets(budgets, categories, "trans", 0, 0)
	require.Len(t, bres.Items, 1)
	assert.Equal(t, "b2", bres.Items[0].ID)

	bres = FilterBudgets(budgets, categories, "", 0, 0)
	assert.Equal(t, "b2", bres.Items[0].ID)
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("")
	require.NoError(t, err)
	assert.Equal(t, Transactions, e)

	e, err = ParseEntity("Rules")
	require.NoError(t, err)
	assert.Equal(t, Rules, e)

	_, err = ParseEntity("accounts")
	assert.Error(t, err)
}
