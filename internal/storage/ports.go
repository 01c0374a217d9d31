package storage

import (
	"context"

	"cashbook/internal/core"
)

// Record store ports. Every method is scoped to one owner except
// ListDueRules, which feeds the background worker.

type AccountStore interface {
	CreateAccount(ctx context.Context, a core.Account) error
	ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error)
}

// CategoryStore lists the global categories together with the owner's own.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, ownerID, id string) error
	ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
}

// BudgetStore enforces one budget per (owner, category, month); CreateBudget
// reports a collision as core.ErrDuplicateBudget.
type BudgetStore interface {
	CreateBudget(ctx context.Context, b core.Budget) error
	UpdateBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, ownerID, id string) error
	GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error)
	ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error)
}

type RuleStore interface {
	CreateRule(ctx context.Context, r core.RecurringRule) error
	GetRule(ctx context.Context, ownerID, id string) (core.RecurringRule, error)
	ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error)
	// ListDueRules returns the rules of every owner whose next run is on or
	// before ref.
	ListDueRules(ctx context.Context, ref core.Date) ([]core.RecurringRule, error)
	// AdvanceRule moves the rule to advanced.NextRunDate only if its stored
	// next run still equals expected; otherwise it returns core.ErrStaleRule.
	AdvanceRule(ctx context.Context, advanced core.RecurringRule, expected core.Date) error
}

// RecurringPoster is implemented by stores that can post a generated
// transaction and advance its rule in a single atomic write.
type RecurringPoster interface {
	PostRecurring(ctx context.Context, tx core.Transaction, advanced core.RecurringRule, expected core.Date) error
}

// RateStore keeps at most one rate per (owner, base, target).
type RateStore interface {
	UpsertRate(ctx context.Context, r core.FxRate) error
	DeleteRate(ctx context.Context, ownerID string, base, target core.CurrencyCode) error
	ListRates(ctx context.Context, ownerID string) ([]core.FxRate, error)
}

// Store is the full record store used by the services.
type Store interface {
	AccountStore
	CategoryStore
	TransactionStore
	BudgetStore
	RuleStore
	RateStore
	Close() error
}
