package worker

import (
	"context"
	"fmt"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/cache"
	"cashbook/internal/core"
	applog "cashbook/internal/log"
	"cashbook/internal/sheets"
)

var _ amqp.Handler = (*NotifyWorker)(nil)

// NotifyWorker exports consumed cashbook events to a spreadsheet.
// Redelivered messages already exported within the dedup window are
// acknowledged without writing a second row.
type NotifyWorker struct {
	exporter sheets.Exporter
	seen     *cache.LRU[string, struct{}]
}

const (
	seenSize = 4096
	seenTTL  = 24 * time.Hour
)

func NewNotifyWorker(exporter sheets.Exporter) *NotifyWorker {
	return &NotifyWorker{
		exporter: exporter,
		seen:     cache.NewLRU[string, struct{}](seenSize, seenTTL),
	}
}

// Seen exposes the dedup cache for periodic cleanup.
func (w *NotifyWorker) Seen() cache.Cleaner {
	return w.seen
}

// HandleBudgetExceeded appends the alert to the alerts sheet.
func (w *NotifyWorker) HandleBudgetExceeded(ctx context.Context, msg *amqp.BudgetExceededMessage) error {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
	key := "budget:" + msg.BudgetID + ":" + msg.Month
	if _, ok := w.seen.Get(key); ok {
		logger.DebugContext(ctx, "Alert already exported", applog.FieldBudgetID, msg.BudgetID)
		return nil
	}

	ref, err := w.exporter.AppendAlert(ctx, sheets.AlertRow{
		At:       msg.Timestamp,
		OwnerID:  msg.OwnerID,
		BudgetID: msg.BudgetID,
		Month:    msg.Month,
		Category: msg.CategoryName,
		Spent:    msg.Spent,
		Limit:    msg.Limit,
		Currency: msg.Currency,
		Pct:      msg.Pct,
	})
	if err != nil {
		return fmt.Errorf("export alert: %w", err)
	}
	w.seen.Set(key, struct{}{})

	logger.InfoContext(ctx, "Exported budget alert",
		applog.FieldOwnerID, msg.OwnerID,
		applog.FieldBudgetID, msg.BudgetID,
		applog.FieldMonth, msg.Month,
		"pct", msg.Pct,
		"sheets_ref", ref)
	return nil
}

// HandleTransactionPosted appends the transaction to the postings sheet.
func (w *NotifyWorker) HandleTransactionPosted(ctx context.Context, msg *amqp.TransactionPostedMessage) error {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
	key := "tx:" + msg.ID
	if _, ok := w.seen.Get(key); ok {
		return nil
	}

	date, err := core.ParseDate(msg.Date)
	if err != nil {
		// A bad date will never export; drop it instead of requeueing forever.
		logger.ErrorContext(ctx, "Dropping posting with invalid date",
			applog.FieldTransactionID, msg.ID,
			applog.FieldError, err)
		return nil
	}

	_, err = w.exporter.AppendPosting(ctx, sheets.PostingRow{
		Date:          date,
		TransactionID: msg.ID,
		OwnerID:       msg.OwnerID,
		AccountID:     msg.AccountID,
		CategoryID:    msg.CategoryID,
		Kind:          msg.Kind,
		Amount:        msg.Amount,
		Currency:      msg.Currency,
		Note:          msg.Note,
		Source:        msg.Source,
	})
	if err != nil {
		return fmt.Errorf("export posting: %w", err)
	}
	w.seen.Set(key, struct{}{})

	logger.InfoContext(ctx, "Exported transaction",
		applog.NewFields().
			WithOwner(msg.OwnerID).
			WithOperation(applog.OpExport).
			WithMoney(msg.Amount, msg.Currency).
			Attr()...)
	return nil
}
