package sheets

import (
	"context"
	"time"

	"cashbook/internal/core"
)

// AlertRow is one exceeded budget as written to the alerts sheet.
type AlertRow struct {
	At       time.Time
	OwnerID  string
	BudgetID string
	Month    string
	Category string
	Spent    string
	Limit    string
	Currency string
	Pct      int64
}

// PostingRow is one stored transaction as written to the postings sheet.
type PostingRow struct {
	Date          core.Date
	TransactionID string
	OwnerID       string
	AccountID     string
	CategoryID    string
	Kind          string
	Amount        string
	Currency      string
	Note          string
	Source        string
}

// Ports for outbound adapters.
type (
	AlertWriter interface {
		AppendAlert(ctx context.Context, a AlertRow) (rowRef string, err error)
	}

	PostingWriter interface {
		AppendPosting(ctx context.Context, p PostingRow) (rowRef string, err error)
	}

	// RateReader reads a shared exchange-rate table maintained by hand.
	RateReader interface {
		ReadRates(ctx context.Context, ownerID string) ([]core.FxRate, error)
	}

	Exporter interface {
		AlertWriter
		PostingWriter
	}
)
