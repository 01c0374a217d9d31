package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashbook/internal/budget"
	"cashbook/internal/core"
)

// Routing keys of the events published on the exchange.
const (
	RoutingBudgetExceeded    = "budget.exceeded"
	RoutingTransactionPosted = "transaction.posted"
)

var ErrUnknownMessage = errors.New("unknown message type")

// BudgetExceededMessage announces that a budget moved over its limit.
// Amounts are decimal strings rounded to two places.
type BudgetExceededMessage struct {
	BudgetID     string    `json:"budget_id"`
	OwnerID      string    `json:"owner_id"`
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Month        string    `json:"month"`
	Spent        string    `json:"spent"`
	Limit        string    `json:"limit"`
	Currency     string    `json:"currency"`
	Pct          int64     `json:"pct"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewBudgetExceededMessage(ev budget.ExceededEvent) *BudgetExceededMessage {
	return &BudgetExceededMessage{
		BudgetID:     ev.BudgetID,
		OwnerID:      ev.OwnerID,
		CategoryID:   ev.CategoryID,
		CategoryName: ev.CategoryName,
		Month:        ev.Month.MonthKey(),
		Spent:        ev.Spent.Amount.StringFixed(core.Scale),
		Limit:        ev.Limit.Amount.StringFixed(core.Scale),
		Currency:     string(ev.Limit.Currency),
		Pct:          ev.Pct,
		Timestamp:    time.Now(),
	}
}

func (m *BudgetExceededMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetExceededMessageFromJSON(data []byte) (*BudgetExceededMessage, error) {
	var msg BudgetExceededMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.BudgetID == "" {
		return nil, fmt.Errorf("budget exceeded message without budget_id")
	}
	return &msg, nil
}

// TransactionPostedMessage announces a stored transaction. Source is
// "manual" or "recurring".
type TransactionPostedMessage struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	AccountID  string    `json:"account_id"`
	CategoryID string    `json:"category_id,omitempty"`
	Kind       string    `json:"kind"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Date       string    `json:"date"`
	Note       string    `json:"note,omitempty"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewTransactionPostedMessage(tx core.Transaction, source string) *TransactionPostedMessage {
	return &TransactionPostedMessage{
		ID:         tx.ID,
		OwnerID:    tx.OwnerID,
		AccountID:  tx.AccountID,
		CategoryID: tx.Category.RawID(),
		Kind:       string(tx.Kind),
		Amount:     tx.Amount.StringFixed(core.Scale),
		Currency:   string(tx.Currency),
		Date:       tx.Date.String(),
		Note:       tx.Note,
		Source:     source,
		Timestamp:  time.Now(),
	}
}

func (m *TransactionPostedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionPostedMessageFromJSON(data []byte) (*TransactionPostedMessage, error) {
	var msg TransactionPostedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("transaction posted message without id")
	}
	return &msg, nil
}

// Handler receives decoded deliveries.
type Handler interface {
	HandleBudgetExceeded(ctx context.Context, msg *BudgetExceededMessage) error
	HandleTransactionPosted(ctx context.Context, msg *TransactionPostedMessage) error
}

// decodeError marks a delivery that can never be processed.
type decodeError struct{ err error }

func (e decodeError) Error() string { return "decode message: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

// Dispatch decodes body according to routingKey and hands it to h.
func Dispatch(ctx context.Context, routingKey string, body []byte, h Handler) error {
	switch routingKey {
	case RoutingBudgetExceeded:
		msg, err := BudgetExceededMessageFromJSON(body)
		if err != nil {
			return decodeError{err}
		}
		return h.HandleBudgetExceeded(ctx, msg)
	case RoutingTransactionPosted:
		msg, err := TransactionPostedMessageFromJSON(body)
		if err != nil {
			return decodeError{err}
		}
		return h.HandleTransactionPosted(ctx, msg)
	default:
		return decodeError{fmt.Errorf("%w: %q", ErrUnknownMessage, routingKey)}
	}
}

// IsPermanent reports whether err means the delivery should be dropped
// rather than requeued.
func IsPermanent(err error) bool {
	var de decodeError
	return errors.As(err, &de)
}
