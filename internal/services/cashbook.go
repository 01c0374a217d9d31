package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cashbook/internal/budget"
	"cashbook/internal/core"
	"cashbook/internal/fx"
	"cashbook/internal/ledger"
	applog "cashbook/internal/log"
	"cashbook/internal/search"
	"cashbook/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cashbook is the owner-scoped entry point used by the HTTP API, the CLI
// and the workers.
type Cashbook struct {
	store     storage.Store
	rates     *RateService
	budgets   *BudgetService
	recurring *RecurringProcessor
	events    EventPublisher
	pageSize  int
}

type Options struct {
	Events      EventPublisher
	RateSource  fx.Source
	Base        core.CurrencyCode
	RateTTL     time.Duration
	PageSize    int
	Concurrency int
}

func NewCashbook(store storage.Store, opts Options) *Cashbook {
	events := opts.Events
	if events == nil {
		events = NoopPublisher{}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = search.DefaultPageSize
	}
	rates := NewRateService(store, opts.RateSource, opts.Base, opts.RateTTL)
	c := &Cashbook{
		store:     store,
		rates:     rates,
		budgets:   NewBudgetService(store, rates, events),
		recurring: NewRecurringProcessor(store, events, opts.Concurrency),
		events:    events,
		pageSize:  pageSize,
	}
	c.recurring.onPosted = func(ctx context.Context, tx core.Transaction) {
		c.refreshBudgets(ctx, tx.OwnerID, tx.Date)
	}
	return c
}

func (c *Cashbook) Rates() *RateService { return c.rates }

// Aggregate totals the owner's transactions inside w. When target is set
// every group is converted into it.
func (c *Cashbook) Aggregate(ctx context.Context, owner string, w ledger.Window, by ledger.GroupBy, target core.CurrencyCode) (ledger.Report, error) {
	txs, err := c.store.ListTransactions(ctx, owner)
	if err != nil {
		return ledger.Report{}, fmt.Errorf("list transactions: %w", err)
	}
	cats, err := c.store.ListCategories(ctx, owner)
	if err != nil {
		return ledger.Report{}, fmt.Errorf("list categories: %w", err)
	}

	opts := []ledger.Option{ledger.WithCategories(cats)}
	if target != "" {
		if err := target.Validate(); err != nil {
			return ledger.Report{}, err
		}
		conv, err := c.rates.Converter(ctx, owner)
		if err != nil {
			return ledger.Report{}, err
		}
		opts = append(opts, ledger.WithConversion(conv, target))
	}

	report := ledger.Aggregate(txs, w, by, opts...)
	if report.Skipped > 0 || report.Approximate {
		applog.FromContext(ctx).WithComponent(applog.ComponentLedger).WarnContext(ctx, "Aggregate is incomplete",
			applog.FieldOwnerID, owner,
			"window", w.String(),
			"skipped", report.Skipped,
			"approximate", report.Approximate)
	}
	return report, nil
}

func (c *Cashbook) EvaluateBudgets(ctx context.Context, owner string, month core.Date) ([]budget.Evaluation, error) {
	return c.budgets.Evaluate(ctx, owner, month)
}

// BudgetChart evaluates the month and projects every budget into to.
func (c *Cashbook) BudgetChart(ctx context.Context, owner string, month core.Date, to core.CurrencyCode) ([]budget.ChartPoint, error) {
	if err := to.Validate(); err != nil {
		return nil, err
	}
	evals, err := c.budgets.Evaluate(ctx, owner, month)
	if err != nil {
		return nil, err
	}
	conv, err := c.rates.Converter(ctx, owner)
	if err != nil {
		return nil, err
	}
	return budget.ConvertEvaluations(evals, conv, to), nil
}

func (c *Cashbook) ApplyRecurring(ctx context.Context, owner, ruleID string, ref core.Date) (core.Transaction, core.RecurringRule, error) {
	return c.recurring.Apply(ctx, owner, ruleID, ref)
}

// ProcessDue applies the due rules of every owner.
func (c *Cashbook) ProcessDue(ctx context.Context, ref core.Date) (Summary, error) {
	return c.recurring.ProcessDue(ctx, ref)
}

// SearchResult is one page of a search over a single entity.
type SearchResult struct {
	Entity       search.Entity
	Transactions []core.Transaction
	Budgets      []core.Budget
	Rules        []core.RecurringRule
	Total        int
	Page         int
	PageSize     int
	Pages        int
}

func (c *Cashbook) Search(ctx context.Context, owner string, entity search.Entity, query string, page int) (SearchResult, error) {
	cats, err := c.store.ListCategories(ctx, owner)
	if err != nil {
		return SearchResult{}, fmt.Errorf("list categories: %w", err)
	}

	out := SearchResult{Entity: entity}
	switch entity {
	case search.Transactions, "":
		out.Entity = search.Transactions
		txs, err := c.store.ListTransactions(ctx, owner)
		if err != nil {
			return SearchResult{}, fmt.Errorf("list transactions: %w", err)
		}
		r := search.FilterTransactions(txs, cats, query, page, c.pageSize)
		out.Transactions = r.Items
		out.Total, out.Page, out.PageSize, out.Pages = r.Total, r.Page, r.PageSize, r.Pages
	case search.Budgets:
		bs, err := c.store.ListBudgets(ctx, owner)
		if err != nil {
			return SearchResult{}, fmt.Errorf("list budgets: %w", err)
		}
		r := search.FilterBudgets(bs, cats, query, page, c.pageSize)
		out.Budgets = r.Items
		out.Total, out.Page, out.PageSize, out.Pages = r.Total, r.Page, r.PageSize, r.Pages
	case search.Rules:
		rules, err := c.store.ListRules(ctx, owner)
		if err != nil {
			return SearchResult{}, fmt.Errorf("list rules: %w", err)
		}
		r := search.FilterRules(rules, cats, query, page, c.pageSize)
		out.Rules = r.Items
		out.Total, out.Page, out.PageSize, out.Pages = r.Total, r.Page, r.PageSize, r.Pages
	default:
		return SearchResult{}, fmt.Errorf("unknown entity %q", entity)
	}
	return out, nil
}

// Convert converts amount with the owner's rate table. On
// core.ErrNoConversionPath the amount is returned unchanged.
func (c *Cashbook) Convert(ctx context.Context, owner string, amount decimal.Decimal, from, to core.CurrencyCode) (decimal.Decimal, error) {
	conv, err := c.rates.Converter(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return conv.Convert(amount, from, to)
}

func (c *Cashbook) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := c.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (c *Cashbook) ListAccounts(ctx context.Context, owner string) ([]core.Account, error) {
	return c.store.ListAccounts(ctx, owner)
}

// CreateCategory stores a category owned by c.OwnerID.
func (c *Cashbook) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if strings.TrimSpace(cat.OwnerID) == "" {
		return core.Category{}, core.ErrMissingOwner
	}
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	cat.Name = strings.TrimSpace(cat.Name)
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := c.store.CreateCategory(ctx, cat); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return cat, nil
}

func (c *Cashbook) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	return c.store.ListCategories(ctx, owner)
}

// CreateTransaction stores tx, notifies collaborators and refreshes the
// budgets of its month.
func (c *Cashbook) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.Note = strings.TrimSpace(tx.Note)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(tx.AccountID) == "" {
		return core.Transaction{}, core.ErrMissingAccount
	}
	if err := c.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	if err := c.events.PublishTransactionPosted(ctx, tx, SourceManual); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentLedger).ErrorContext(ctx, "Failed to publish transaction posted event",
			applog.FieldTransactionID, tx.ID,
			applog.FieldError, err)
	}
	c.refreshBudgets(ctx, tx.OwnerID, tx.Date)
	return tx, nil
}

func (c *Cashbook) DeleteTransaction(ctx context.Context, owner, id string) error {
	txs, err := c.store.ListTransactions(ctx, owner)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	var month core.Date
	for _, tx := range txs {
		if tx.ID == id {
			month = tx.Date
			break
		}
	}
	if err := c.store.DeleteTransaction(ctx, owner, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !month.IsZero() {
		c.refreshBudgets(ctx, owner, month)
	}
	return nil
}

func (c *Cashbook) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	return c.store.ListTransactions(ctx, owner)
}

// CreateBudget stores b for the month containing b.Month. A second budget
// for the same category and month fails with core.ErrDuplicateBudget.
func (c *Cashbook) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if !b.Month.IsZero() {
		b.Month = b.Month.MonthStart()
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := c.store.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	c.refreshBudgets(ctx, b.OwnerID, b.Month)
	return b, nil
}

func (c *Cashbook) UpdateBudget(ctx context.Context, owner, id string, u budget.Update) (core.Budget, error) {
	b, err := c.store.GetBudget(ctx, owner, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	b, err = u.Apply(b)
	if err != nil {
		return core.Budget{}, err
	}
	if err := c.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	c.refreshBudgets(ctx, owner, b.Month)
	return b, nil
}

func (c *Cashbook) DeleteBudget(ctx context.Context, owner, id string) error {
	if err := c.store.DeleteBudget(ctx, owner, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	c.budgets.Forget(owner, id)
	return nil
}

func (c *Cashbook) ListBudgets(ctx context.Context, owner string) ([]core.Budget, error) {
	return c.store.ListBudgets(ctx, owner)
}

// CreateRule stores a recurring rule. A missing anchor date defaults to the
// first run date.
func (c *Cashbook) CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.NextRunDate.IsZero() {
		r.NextRunDate = r.AnchorDate
	}
	if r.AnchorDate.IsZero() {
		r.AnchorDate = r.NextRunDate
	}
	r.Note = strings.TrimSpace(r.Note)
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if strings.TrimSpace(r.AccountID) == "" {
		return core.RecurringRule{}, core.ErrMissingAccount
	}
	if err := c.store.CreateRule(ctx, r); err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule: %w", err)
	}
	return r, nil
}

func (c *Cashbook) ListRules(ctx context.Context, owner string) ([]core.RecurringRule, error) {
	return c.store.ListRules(ctx, owner)
}

func (c *Cashbook) UpsertRate(ctx context.Context, r core.FxRate) error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return core.ErrMissingOwner
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if err := c.store.UpsertRate(ctx, r); err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}
	c.rates.Invalidate(r.OwnerID)
	return nil
}

// UpsertRates validates every rate before storing any of them.
func (c *Cashbook) UpsertRates(ctx context.Context, owner string, rates []core.FxRate) error {
	for _, r := range rates {
		if r.OwnerID != owner {
			return fmt.Errorf("rate %s/%s: %w", r.Base, r.Target, core.ErrMissingOwner)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rate %s/%s: %w", r.Base, r.Target, err)
		}
	}
	for _, r := range rates {
		if err := c.UpsertRate(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cashbook) DeleteRate(ctx context.Context, owner string, base, target core.CurrencyCode) error {
	if err := c.store.DeleteRate(ctx, owner, base, target); err != nil {
		return fmt.Errorf("delete rate: %w", err)
	}
	c.rates.Invalidate(owner)
	return nil
}

func (c *Cashbook) ListRates(ctx context.Context, owner string) ([]core.FxRate, error) {
	return c.store.ListRates(ctx, owner)
}

// refreshBudgets re-evaluates the budgets of the month containing d so
// exceeded events fire as soon as a write crosses a limit.
func (c *Cashbook) refreshBudgets(ctx context.Context, owner string, d core.Date) {
	if _, err := c.budgets.Evaluate(ctx, owner, d.MonthStart()); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentBudget).ErrorContext(ctx, "Failed to refresh budgets",
			applog.NewFields().
				WithOwner(owner).
				WithOperation(applog.OpEvaluate).
				WithError(err).
				Attr()...)
	}
}
