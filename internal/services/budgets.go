package services

import (
	"context"
	"fmt"

	"cashbook/internal/budget"
	"cashbook/internal/core"
	applog "cashbook/internal/log"
	"cashbook/internal/storage"
)

// BudgetService evaluates an owner's budgets and notifies collaborators
// when one goes over its limit.
type BudgetService struct {
	store   storage.Store
	rates   *RateService
	tracker *budget.Tracker
	events  EventPublisher
}

func NewBudgetService(store storage.Store, rates *RateService, events EventPublisher) *BudgetService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &BudgetService{
		store:   store,
		rates:   rates,
		tracker: budget.NewTracker(),
		events:  events,
	}
}

// Evaluate recomputes the budgets of month for owner. Budgets that moved
// into the over state since the previous pass are published once.
func (s *BudgetService) Evaluate(ctx context.Context, owner string, month core.Date) ([]budget.Evaluation, error) {
	all, err := s.store.ListBudgets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	var budgets []core.Budget
	for _, b := range all {
		if b.Month.Equal(month.MonthStart()) {
			budgets = append(budgets, b)
		}
	}
	if len(budgets) == 0 {
		return []budget.Evaluation{}, nil
	}

	txs, err := s.store.ListTransactions(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	cats, err := s.store.ListCategories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	conv, err := s.rates.Converter(ctx, owner)
	if err != nil {
		return nil, err
	}

	pass := s.tracker.Recompute(owner, budgets, txs, conv, cats)
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentBudget)

	for _, ev := range pass.Evaluations {
		if ev.Approximate {
			logger.WarnContext(ctx, "Budget spent is approximate",
				applog.FieldOwnerID, owner,
				applog.FieldBudgetID, ev.Budget.ID,
				applog.FieldCurrency, ev.Budget.Currency,
				applog.FieldError, core.ErrNoConversionPath)
		}
		if ev.Skipped > 0 {
			logger.WarnContext(ctx, "Malformed transactions skipped",
				applog.FieldOwnerID, owner,
				applog.FieldBudgetID, ev.Budget.ID,
				"skipped", ev.Skipped)
		}
	}
	for _, e := range pass.Events {
		logger.InfoContext(ctx, "Budget exceeded",
			applog.FieldOwnerID, owner,
			applog.FieldBudgetID, e.BudgetID,
			applog.FieldCategoryID, e.CategoryID,
			applog.FieldMonth, e.Month.MonthKey(),
			"spent", e.Spent.String(),
			"limit", e.Limit.String())
		if err := s.events.PublishBudgetExceeded(ctx, e); err != nil {
			logger.ErrorContext(ctx, "Failed to publish budget exceeded event",
				applog.NewFields().WithOperation(applog.OpPublish).WithError(err).
					Attr()...)
		}
	}
	return pass.Evaluations, nil
}

// Forget drops the remembered status of a deleted budget.
func (s *BudgetService) Forget(owner, budgetID string) {
	s.tracker.Forget(owner, budgetID)
}
