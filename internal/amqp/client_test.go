package amqp

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cashbook/internal/budget"
	"cashbook/internal/core"

	"github.com/shopspring/decimal"
)

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for attempt, d := range want {
		if got := exponentialBackoff(attempt); got != d {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, d)
		}
	}
	for _, attempt := range []int{5, 6, 40} {
		if got := exponentialBackoff(attempt); got != maxBackoff {
			t.Errorf("attempt %d: got %v, want cap %v", attempt, got, maxBackoff)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	retryable := []string{
		"dial tcp: connection refused",
		"unexpected EOF",
		"write: broken pipe",
		"Exception (504) Reason: \"channel/connection is not open\"",
	}
	for _, msg := range retryable {
		if !isConnectionError(errors.New(msg)) {
			t.Errorf("%q should be treated as a lost connection", msg)
		}
	}
	for _, err := range []error{nil, errors.New("PRECONDITION_FAILED - inequivalent arg 'type'")} {
		if isConnectionError(err) {
			t.Errorf("%v should not be treated as a lost connection", err)
		}
	}
}

func breakerState(c *Client) int32 { return atomic.LoadInt32(&c.state) }

func TestCircuitBreakerTransitions(t *testing.T) {
	c := &Client{exchangeName: "cashbook"}

	if c.isCircuitOpen() {
		t.Fatal("new client should accept publishes")
	}

	for i := 1; i < maxFailures; i++ {
		c.recordFailure()
	}
	if breakerState(c) != StateClosed {
		t.Fatalf("breaker opened after %d failures", maxFailures-1)
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatalf("breaker should open at %d failures", maxFailures)
	}

	c.failMu.Lock()
	c.lastFailure = time.Now().Add(-openTimeout - time.Millisecond)
	c.failMu.Unlock()
	if c.isCircuitOpen() {
		t.Fatal("breaker should let a probe through once the open timeout passed")
	}
	if breakerState(c) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", breakerState(c))
	}

	// A failed probe reopens at once.
	c.recordFailure()
	if breakerState(c) != StateOpen {
		t.Fatalf("state = %d, want open after failed probe", breakerState(c))
	}

	c.recordSuccess()
	if breakerState(c) != StateClosed || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Fatal("success should close the breaker and clear the failure count")
	}
}

func TestPublishShortCircuits(t *testing.T) {
	c := &Client{exchangeName: "cashbook"}
	atomic.StoreInt32(&c.state, StateOpen)
	c.lastFailure = time.Now()

	err := c.PublishTransactionPosted(context.Background(), core.Transaction{ID: "t1"}, "manual")
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("got %v, want open breaker error", err)
	}

	atomic.StoreInt32(&c.state, StateClosed)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.PublishBudgetExceeded(ctx, budget.ExceededEvent{BudgetID: "b1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestBudgetExceededMessage(t *testing.T) {
	ev := budget.ExceededEvent{
		BudgetID:     "b1",
		OwnerID:      "u1",
		CategoryID:   "food",
		CategoryName: "Food",
		Month:        core.NewDate(2025, 6, 1),
		Spent:        core.NewMoney(decimal.NewFromInt(550), "USD"),
		Limit:        core.NewMoney(decimal.NewFromInt(500), "USD"),
		Pct:          110,
	}

	msg := NewBudgetExceededMessage(ev)
	if msg.Month != "2025-06" || msg.Spent != "550.00" || msg.Limit != "500.00" || msg.Currency != "USD" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("timestamp should be recent")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := BudgetExceededMessageFromJSON(body)
	if err != nil {
		t.Fatalf("BudgetExceededMessageFromJSON() error = %v", err)
	}
	if parsed.BudgetID != "b1" || parsed.Pct != 110 || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestTransactionPostedMessage(t *testing.T) {
	tx := core.Transaction{
		ID:        "t1",
		OwnerID:   "u1",
		AccountID: "acc",
		Category:  core.NoCategory(),
		Amount:    decimal.RequireFromString("12.5"),
		Currency:  "KES",
		Kind:      core.Expense,
		Date:      core.NewDate(2025, 2, 28),
	}
	msg := NewTransactionPostedMessage(tx, "recurring")
	if msg.Amount != "12.50" || msg.Date != "2025-02-28" || msg.CategoryID != "" || msg.Source != "recurring" {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, err := TransactionPostedMessageFromJSON([]byte(`{"id": 5}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := TransactionPostedMessageFromJSON([]byte(`{"owner_id": "u1"}`)); err == nil {
		t.Error("expected error for missing id")
	}
}

type recordingHandler struct {
	exceeded []string
	posted   []string
	err      error
}

func (h *recordingHandler) HandleBudgetExceeded(_ context.Context, msg *BudgetExceededMessage) error {
	h.exceeded = append(h.exceeded, msg.BudgetID)
	return h.err
}

func (h *recordingHandler) HandleTransactionPosted(_ context.Context, msg *TransactionPostedMessage) error {
	h.posted = append(h.posted, msg.ID)
	return h.err
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	h := &recordingHandler{}

	if err := Dispatch(ctx, RoutingBudgetExceeded, []byte(`{"budget_id":"b1"}`), h); err != nil {
		t.Fatalf("dispatch budget: %v", err)
	}
	if err := Dispatch(ctx, RoutingTransactionPosted, []byte(`{"id":"t1"}`), h); err != nil {
		t.Fatalf("dispatch transaction: %v", err)
	}
	if len(h.exceeded) != 1 || len(h.posted) != 1 {
		t.Fatalf("handler calls: %v %v", h.exceeded, h.posted)
	}

	err := Dispatch(ctx, "account.created", []byte(`{}`), h)
	if !errors.Is(err, ErrUnknownMessage) || !IsPermanent(err) {
		t.Errorf("unknown key: %v", err)
	}
	if err := Dispatch(ctx, RoutingBudgetExceeded, []byte(`not json`), h); !IsPermanent(err) {
		t.Errorf("bad body should be permanent: %v", err)
	}

	h.err = errors.New("sheet unavailable")
	err = Dispatch(ctx, RoutingBudgetExceeded, []byte(`{"budget_id":"b2"}`), h)
	if err == nil || IsPermanent(err) {
		t.Errorf("handler failure should be retryable: %v", err)
	}
}

func TestSettle(t *testing.T) {
	handlerErr := errors.New("sheets unavailable")
	undecodable := decodeError{errors.New("bad json")}

	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        outcome
	}{
		{"handled", nil, false, outcomeAck},
		{"handled on redelivery", nil, true, outcomeAck},
		{"undecodable", undecodable, false, outcomeDrop},
		{"first failure", handlerErr, false, outcomeRetry},
		{"second failure", handlerErr, true, outcomeDrop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := settle(tt.err, tt.redelivered); got != tt.want {
				t.Errorf("settle(%v, %v) = %d, want %d", tt.err, tt.redelivered, got, tt.want)
			}
		})
	}
}
