// Package budget compares monthly category budgets against recorded expenses.
package budget

import (
	"cashbook/internal/core"
	"cashbook/internal/ledger"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUnder Status = "under"
	StatusAt    Status = "at"
	StatusOver  Status = "over"
)

var hundred = decimal.NewFromInt(100)

// Evaluation is the state of one budget against its month's expenses.
type Evaluation struct {
	Budget core.Budget
	Spent  core.Money
	Limit  core.Money
	Pct    int64
	Status Status

	// Approximate is set when some expense in the category could not be
	// converted into the budget currency and was added to Spent at face value.
	Approximate bool
	Skipped     int
}

// Evaluate sums the expenses of the budget's category within its month,
// converted into the budget currency. conv may be nil when every expense is
// recorded in the budget currency.
func Evaluate(b core.Budget, txs []core.Transaction, conv ledger.Converter) Evaluation {
	var inCategory []core.Transaction
	for _, tx := range txs {
		if tx.Category.Is(b.CategoryID) {
			inCategory = append(inCategory, tx)
		}
	}

	var opts []ledger.Option
	if conv != nil {
		opts = append(opts, ledger.WithConversion(conv, b.Currency))
	}
	rep := ledger.Aggregate(inCategory, ledger.Month(b.Month), ledger.ByCategory, opts...)

	spent := decimal.Zero
	approximate := false
	for k, t := range rep.Groups {
		if k.Group != b.CategoryID {
			continue
		}
		spent = spent.Add(t.Expense)
		if k.Currency != b.Currency && t.Count > 0 {
			approximate = true
		}
	}

	ev := Evaluation{
		Budget:      b,
		Spent:       core.NewMoney(spent, b.Currency),
		Limit:       core.NewMoney(b.Limit, b.Currency),
		Approximate: approximate,
		Skipped:     rep.Skipped,
	}
	ev.Pct = percent(ev.Spent.Amount, b.Limit)
	ev.Status = classify(ev.Spent.Amount, b.Limit)
	return ev
}

// percent rounds 100*spent/limit half up. A zero limit yields 0.
func percent(spent, limit decimal.Decimal) int64 {
	if limit.IsZero() {
		return 0
	}
	return spent.Mul(hundred).Div(limit).Round(0).IntPart()
}

func classify(spent, limit decimal.Decimal) Status {
	switch spent.Cmp(limit) {
	case 1:
		return StatusOver
	case 0:
		if limit.IsZero() {
			return StatusUnder
		}
		return StatusAt
	default:
		return StatusUnder
	}
}

// Update holds the mutable fields of a budget.
type Update struct {
	Limit    decimal.Decimal
	Currency core.CurrencyCode
}

// Apply replaces the mutable fields of b. Owner, category and month are kept.
func (u Update) Apply(b core.Budget) (core.Budget, error) {
	b.Limit = u.Limit
	b.Currency = u.Currency
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// ChartPoint is an evaluation projected into a single display currency.
type ChartPoint struct {
	BudgetID    string
	CategoryID  string
	Spent       decimal.Decimal
	Limit       decimal.Decimal
	Currency    core.CurrencyCode
	Approximate bool
}

// ConvertEvaluations projects evaluations into one currency so budgets kept
// in different currencies can be charted side by side.
func ConvertEvaluations(evals []Evaluation, conv ledger.Converter, to core.CurrencyCode) []ChartPoint {
	points := make([]ChartPoint, 0, len(evals))
	for _, ev := range evals {
		p := ChartPoint{
			BudgetID:    ev.Budget.ID,
			CategoryID:  ev.Budget.CategoryID,
			Spent:       ev.Spent.Amount,
			Limit:       ev.Limit.Amount,
			Currency:    to,
			Approximate: ev.Approximate,
		}
		if ev.Spent.Currency != to {
			spent, err1 := conv.Convert(ev.Spent.Amount, ev.Spent.Currency, to)
			limit, err2 := conv.Convert(ev.Limit.Amount, ev.Limit.Currency, to)
			if err1 != nil || err2 != nil {
				p.Approximate = true
			}
			p.Spent, p.Limit = spent, limit
		}
		p.Spent = p.Spent.Round(core.Scale)
		p.Limit = p.Limit.Round(core.Scale)
		points = append(points, p)
	}
	return points
}
