package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/sheets"
	"cashbook/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyWorkerExportsAlertOnce(t *testing.T) {
	ctx := context.Background()
	exp := memory.New()
	w := NewNotifyWorker(exp)

	msg := &amqp.BudgetExceededMessage{
		BudgetID: "b1", OwnerID: "u1", CategoryName: "Food", Month: "2025-06",
		Spent: "550.00", Limit: "500.00", Currency: "USD", Pct: 110, Timestamp: time.Now(),
	}
	require.NoError(t, w.HandleBudgetExceeded(ctx, msg))
	require.NoError(t, w.HandleBudgetExceeded(ctx, msg))

	alerts := exp.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Food", alerts[0].Category)
	assert.Equal(t, int64(110), alerts[0].Pct)
}

func TestNotifyWorkerExportsPosting(t *testing.T) {
	ctx := context.Background()
	exp := memory.New()
	w := NewNotifyWorker(exp)

	msg := &amqp.TransactionPostedMessage{ID: "t1", OwnerID: "u1", Kind: "expense", Amount: "12.50", Currency: "KES", Date: "2025-02-28", Source: "recurring"}
	require.NoError(t, w.HandleTransactionPosted(ctx, msg))
	require.NoError(t, w.HandleTransactionPosted(ctx, msg))

	postings := exp.Postings()
	require.Len(t, postings, 1)
	assert.Equal(t, "2025-02-28", postings[0].Date.String())

	bad := &amqp.TransactionPostedMessage{ID: "t2", Date: "28/02/2025"}
	require.NoError(t, w.HandleTransactionPosted(ctx, bad), "invalid dates are dropped")
	assert.Len(t, exp.Postings(), 1)
}

type failingExporter struct{ *memory.Store }

func (failingExporter) AppendAlert(context.Context, sheets.AlertRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestNotifyWorkerExportFailureIsRetryable(t *testing.T) {
	w := NewNotifyWorker(failingExporter{memory.New()})
	err := w.HandleBudgetExceeded(context.Background(), &amqp.BudgetExceededMessage{BudgetID: "b1", Month: "2025-06"})
	require.Error(t, err)
	assert.False(t, amqp.IsPermanent(err))

	_, seen := w.seen.Get("budget:b1:2025-06")
	assert.False(t, seen, "failed exports are not remembered")
}

func TestNotifyWorkerViaDispatch(t *testing.T) {
	exp := memory.New()
	w := NewNotifyWorker(exp)
	body := []byte(`{"budget_id":"b9","month":"2025-07","pct":101}`)
	require.NoError(t, amqp.Dispatch(context.Background(), amqp.RoutingBudgetExceeded, body, w))
	assert.Len(t, exp.Alerts(), 1)
}
