package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"cashbook/internal/core"
	applog "cashbook/internal/log"
	"cashbook/internal/recurring"
	"cashbook/internal/storage"

	"golang.org/x/sync/errgroup"
)

// RecurringProcessor posts the transactions generated by recurring rules.
type RecurringProcessor struct {
	store       storage.Store
	events      EventPublisher
	concurrency int
	// onPosted runs after a transaction is stored, used to refresh budgets.
	onPosted func(ctx context.Context, tx core.Transaction)
}

func NewRecurringProcessor(store storage.Store, events EventPublisher, concurrency int) *RecurringProcessor {
	if events == nil {
		events = NoopPublisher{}
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &RecurringProcessor{
		store:       store,
		events:      events,
		concurrency: concurrency,
	}
}

// Apply posts one occurrence of the owner's rule as of ref and advances it.
//
// When the store cannot post and advance atomically the two writes happen in
// sequence; if the advance fails the returned *core.PartialApplyError carries
// the transaction already stored.
func (p *RecurringProcessor) Apply(ctx context.Context, owner, ruleID string, ref core.Date) (core.Transaction, core.RecurringRule, error) {
	rule, err := p.store.GetRule(ctx, owner, ruleID)
	if err != nil {
		return core.Transaction{}, core.RecurringRule{}, fmt.Errorf("get rule: %w", err)
	}
	return p.apply(ctx, rule, ref)
}

func (p *RecurringProcessor) apply(ctx context.Context, rule core.RecurringRule, ref core.Date) (core.Transaction, core.RecurringRule, error) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentRecurring)

	cats, err := p.store.ListCategories(ctx, rule.OwnerID)
	if err != nil {
		return core.Transaction{}, rule, fmt.Errorf("list categories: %w", err)
	}
	tx, advanced, err := recurring.Apply(rule, ref, cats)
	if err != nil {
		if errors.Is(err, core.ErrNotDue) {
			logger.DebugContext(ctx, "Recurring rule not due",
				applog.FieldRuleID, rule.ID,
				applog.FieldNextRun, rule.NextRunDate.String())
		}
		return core.Transaction{}, rule, err
	}

	if poster, ok := p.store.(storage.RecurringPoster); ok {
		if err := poster.PostRecurring(ctx, tx, advanced, rule.NextRunDate); err != nil {
			return core.Transaction{}, rule, fmt.Errorf("post recurring transaction: %w", err)
		}
	} else {
		if err := p.store.CreateTransaction(ctx, tx); err != nil {
			return core.Transaction{}, rule, fmt.Errorf("create transaction: %w", err)
		}
		if err := p.store.AdvanceRule(ctx, advanced, rule.NextRunDate); err != nil {
			logger.ErrorContext(ctx, "Recurring transaction posted but rule not advanced",
				applog.FieldRuleID, rule.ID,
				applog.FieldTransactionID, tx.ID,
				applog.FieldError, err)
			return tx, rule, &core.PartialApplyError{RuleID: rule.ID, Transaction: tx, Err: err}
		}
	}

	logger.InfoContext(ctx, "Created transaction from recurring rule",
		applog.NewFields().
			WithOwner(rule.OwnerID).
			WithOperation(applog.OpApply).
			WithMoney(tx.Amount.StringFixed(core.Scale), string(tx.Currency)).
			Attr()...)

	if err := p.events.PublishTransactionPosted(ctx, tx, SourceRecurring); err != nil {
		logger.ErrorContext(ctx, "Failed to publish transaction posted event",
			applog.FieldTransactionID, tx.ID,
			applog.FieldError, err)
	}
	if p.onPosted != nil {
		p.onPosted(ctx, tx)
	}
	return tx, advanced, nil
}

// Summary counts the outcome of one ProcessDue run.
type Summary struct {
	Checked int
	Posted  int
	Failed  int
	Partial int
}

// ProcessDue applies every rule due on ref once. Owners are processed
// concurrently; rules of one owner run in next-run order. Per-rule failures
// are logged and counted, never returned.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, ref core.Date) (Summary, error) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentRecurring)

	rules, err := p.store.ListDueRules(ctx, ref)
	if err != nil {
		return Summary{}, fmt.Errorf("list due rules: %w", err)
	}

	byOwner := make(map[string][]core.RecurringRule)
	for _, r := range rules {
		byOwner[r.OwnerID] = append(byOwner[r.OwnerID], r)
	}

	logger.InfoContext(ctx, "Processing recurring rules",
		"total_due", len(rules),
		"owners", len(byOwner),
		"processing_date", ref.String())

	var (
		mu      sync.Mutex
		summary = Summary{Checked: len(rules)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for owner, owned := range byOwner {
		sort.Slice(owned, func(i, j int) bool {
			if !owned[i].NextRunDate.Equal(owned[j].NextRunDate) {
				return owned[i].NextRunDate.Before(owned[j].NextRunDate)
			}
			return owned[i].ID < owned[j].ID
		})
		g.Go(func() error {
			for _, rule := range owned {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, _, err := p.apply(gctx, rule, ref)

				mu.Lock()
				switch {
				case err == nil:
					summary.Posted++
				case errors.Is(err, core.ErrNotDue), errors.Is(err, core.ErrStaleRule):
					// another worker got there first
				case errors.Is(err, core.ErrPartialApply):
					summary.Partial++
				default:
					summary.Failed++
					logger.ErrorContext(gctx, "Failed to apply recurring rule",
						applog.FieldOwnerID, owner,
						applog.FieldRuleID, rule.ID,
						applog.FieldError, err)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	logger.InfoContext(ctx, "Recurring rule processing complete",
		"posted", summary.Posted,
		"failed", summary.Failed,
		"partial", summary.Partial,
		"total_checked", summary.Checked)
	return summary, nil
}
