// Package storetest holds the behaviour every storage.Store must share.
// Store implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cashbook/internal/core"
	"cashbook/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) storage.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("BudgetUniqueness", func(t *testing.T) { testBudgetUniqueness(t, newStore(t)) })
	t.Run("BudgetIDCollision", func(t *testing.T) { testBudgetIDCollision(t, newStore(t)) })
	t.Run("ConcurrentBudgetCreate", func(t *testing.T) { testConcurrentBudgetCreate(t, newStore(t)) })
	t.Run("BudgetUpdateAndDelete", func(t *testing.T) { testBudgetUpdateAndDelete(t, newStore(t)) })
	t.Run("CategoryScopes", func(t *testing.T) { testCategoryScopes(t, newStore(t)) })
	t.Run("TransactionCategoryRefs", func(t *testing.T) { testTransactionCategoryRefs(t, newStore(t)) })
	t.Run("RuleAdvanceCompareAndSet", func(t *testing.T) { testRuleAdvance(t, newStore(t)) })
	t.Run("RatesUpsert", func(t *testing.T) { testRatesUpsert(t, newStore(t)) })
}

func budget(id string) core.Budget {
	return core.Budget{
		ID:         id,
		OwnerID:    "u1",
		CategoryID: "food",
		Month:      core.NewDate(2025, 6, 1),
		Limit:      decimal.NewFromInt(500),
		Currency:   "USD",
	}
}

func testBudgetUniqueness(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateBudget(ctx, budget("b1")))
	err := s.CreateBudget(ctx, budget("b2"))
	require.ErrorIs(t, err, core.ErrDuplicateBudget)

	other := budget("b3")
	other.Month = core.NewDate(2025, 7, 1)
	require.NoError(t, s.CreateBudget(ctx, other), "different month is allowed")

	otherOwner := budget("b4")
	otherOwner.OwnerID = "u2"
	require.NoError(t, s.CreateBudget(ctx, otherOwner), "different owner is allowed")

	list, err := s.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// Reusing an id for a different (owner, category, month) is a storage
// error, not a duplicate budget.
func testBudgetIDCollision(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateBudget(ctx, budget("b1")))

	clash := budget("b1")
	clash.CategoryID = "rent"
	err := s.CreateBudget(ctx, clash)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrDuplicateBudget)
}

func testConcurrentBudgetCreate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateBudget(ctx, budget(string(rune('a'+i))))
		}(i)
	}
	wg.Wait()

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, core.ErrDuplicateBudget):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func testBudgetUpdateAndDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateBudget(ctx, budget("b1")))

	upd := budget("b1")
	upd.Limit = decimal.NewFromInt(750)
	upd.Currency = "SSP"
	upd.CategoryID = "ignored"
	require.NoError(t, s.UpdateBudget(ctx, upd))

	got, err := s.GetBudget(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.True(t, got.Limit.Equal(decimal.NewFromInt(750)))
	assert.Equal(t, core.CurrencyCode("SSP"), got.Currency)
	assert.Equal(t, "food", got.CategoryID, "category is not a mutable field")

	missing := budget("nope")
	require.ErrorIs(t, s.UpdateBudget(ctx, missing), core.ErrNotFound)
	require.ErrorIs(t, s.DeleteBudget(ctx, "u2", "b1"), core.ErrNotFound, "owner scoped")

	require.NoError(t, s.DeleteBudget(ctx, "u1", "b1"))
	_, err = s.GetBudget(ctx, "u1", "b1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testCategoryScopes(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateCategory(ctx, core.Category{ID: "g", Name: "Global", Kind: core.Expense}))
	require.NoError(t, s.CreateCategory(ctx, core.Category{ID: "mine", OwnerID: "u1", Name: "Mine", Kind: core.Income}))
	require.NoError(t, s.CreateCategory(ctx, core.Category{ID: "theirs", OwnerID: "u2", Name: "Theirs", Kind: core.Expense}))

	cats, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	var ids []string
	for _, c := range cats {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"g", "mine"}, ids)
}

func testTransactionCategoryRefs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateCategory(ctx, core.Category{ID: "food", Name: "Food", Kind: core.Expense}))
	require.NoError(t, s.CreateCategory(ctx, core.Category{ID: "private", OwnerID: "u2", Name: "Private", Kind: core.Expense}))

	base := core.Transaction{
		OwnerID:   "u1",
		AccountID: "acc",
		Amount:    decimal.RequireFromString("12.34"),
		Currency:  "USD",
		Kind:      core.Expense,
		Date:      core.NewDate(2025, 6, 1),
	}
	set, none, dangling, foreign := base, base, base, base
	set.ID, set.Category = "t-set", core.CategoryID("food")
	none.ID, none.Category = "t-none", core.NoCategory()
	dangling.ID, dangling.Category = "t-dangling", core.CategoryID("deleted")
	foreign.ID, foreign.Category = "t-foreign", core.CategoryID("private")
	for _, tx := range []core.Transaction{set, none, dangling, foreign} {
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	txs, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 4)
	byID := map[string]core.Transaction{}
	for _, tx := range txs {
		byID[tx.ID] = tx
	}
	assert.True(t, byID["t-set"].Category.Is("food"))
	assert.True(t, byID["t-none"].Category.IsNone())
	assert.True(t, byID["t-dangling"].Category.IsDangling())
	assert.True(t, byID["t-foreign"].Category.IsDangling(), "another owner's category does not resolve")
	assert.True(t, byID["t-set"].Amount.Equal(decimal.RequireFromString("12.34")))
	assert.True(t, byID["t-set"].Date.Equal(core.NewDate(2025, 6, 1)))

	require.NoError(t, s.DeleteTransaction(ctx, "u1", "t-set"))
	require.ErrorIs(t, s.DeleteTransaction(ctx, "u1", "t-set"), core.ErrNotFound)
}

func testRuleAdvance(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rule := core.RecurringRule{
		ID:          "r1",
		OwnerID:     "u1",
		AccountID:   "acc",
		Kind:        core.Expense,
		Amount:      decimal.NewFromInt(100),
		Currency:    "USD",
		Interval:    core.Monthly,
		NextRunDate: core.NewDate(2025, 1, 31),
	}
	require.NoError(t, s.CreateRule(ctx, rule))

	got, err := s.GetRule(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.True(t, got.AnchorDate.Equal(rule.NextRunDate), "anchor defaults to first run")

	due, err := s.ListDueRules(ctx, core.NewDate(2025, 1, 30))
	require.NoError(t, err)
	assert.Empty(t, due)
	due, err = s.ListDueRules(ctx, core.NewDate(2025, 1, 31))
	require.NoError(t, err)
	assert.Len(t, due, 1)

	advanced := got
	advanced.NextRunDate = core.NewDate(2025, 2, 28)
	require.NoError(t, s.AdvanceRule(ctx, advanced, rule.NextRunDate))
	require.ErrorIs(t, s.AdvanceRule(ctx, advanced, rule.NextRunDate), core.ErrStaleRule)

	poster, ok := s.(storage.RecurringPoster)
	if !ok {
		return
	}
	tx := core.Transaction{
		ID: "t1", OwnerID: "u1", AccountID: "acc", Amount: decimal.NewFromInt(100),
		Currency: "USD", Kind: core.Expense, Date: core.NewDate(2025, 3, 1), Note: "Recurring",
	}
	next := advanced
	next.NextRunDate = core.NewDate(2025, 3, 31)

	// stale expectation: nothing is written
	require.ErrorIs(t, poster.PostRecurring(ctx, tx, next, rule.NextRunDate), core.ErrStaleRule)
	txs, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, txs)

	require.NoError(t, poster.PostRecurring(ctx, tx, next, advanced.NextRunDate))
	txs, err = s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	got, err = s.GetRule(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.True(t, got.NextRunDate.Equal(core.NewDate(2025, 3, 31)))
}

func testRatesUpsert(t *testing.T, s storage.Store) {
	ctx := context.Background()
	r := core.FxRate{OwnerID: "u1", Base: "USD", Target: "SSP", Rate: decimal.NewFromInt(6000)}
	require.NoError(t, s.UpsertRate(ctx, r))
	r.Rate = decimal.NewFromInt(6500)
	require.NoError(t, s.UpsertRate(ctx, r))

	rates, err := s.ListRates(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].Rate.Equal(decimal.NewFromInt(6500)))

	others, err := s.ListRates(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, others)

	require.NoError(t, s.DeleteRate(ctx, "u1", "USD", "SSP"))
	require.ErrorIs(t, s.DeleteRate(ctx, "u1", "USD", "SSP"), core.ErrNotFound)
}
