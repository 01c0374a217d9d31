package services

import (
	"context"

	"cashbook/internal/budget"
	"cashbook/internal/core"
)

// Transaction sources carried by posted events.
const (
	SourceManual    = "manual"
	SourceRecurring = "recurring"
)

// EventPublisher delivers notifications to collaborators outside the
// process. Publishing failures are logged by the services and never undo
// the write that produced the event.
type EventPublisher interface {
	PublishBudgetExceeded(ctx context.Context, ev budget.ExceededEvent) error
	PublishTransactionPosted(ctx context.Context, tx core.Transaction, source string) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishBudgetExceeded(context.Context, budget.ExceededEvent) error {
	return nil
}

func (NoopPublisher) PublishTransactionPosted(context.Context, core.Transaction, string) error {
	return nil
}
