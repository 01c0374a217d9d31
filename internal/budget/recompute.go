package budget

import (
	"sync"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
)

// ExceededEvent is emitted once when a budget moves into the over state.
type ExceededEvent struct {
	BudgetID     string
	OwnerID      string
	CategoryID   string
	CategoryName string
	Month        core.Date
	Spent        core.Money
	Limit        core.Money
	Pct          int64
}

// Pass is the result of one recomputation over an owner's budgets.
type Pass struct {
	Evaluations []Evaluation
	Events      []ExceededEvent
}

// Recompute evaluates every budget and emits an ExceededEvent for each one
// that is over now but was not over according to previous. A budget id
// appears in Events at most once per pass.
func Recompute(budgets []core.Budget, txs []core.Transaction, conv ledger.Converter, categories []core.Category, previous map[string]Status) Pass {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	pass := Pass{Evaluations: make([]Evaluation, 0, len(budgets))}
	emitted := make(map[string]bool)
	for _, b := range budgets {
		ev := Evaluate(b, txs, conv)
		pass.Evaluations = append(pass.Evaluations, ev)

		if ev.Status != StatusOver || previous[b.ID] == StatusOver || emitted[b.ID] {
			continue
		}
		emitted[b.ID] = true
		name := names[b.CategoryID]
		if name == "" {
			name = ledger.Uncategorized
		}
		pass.Events = append(pass.Events, ExceededEvent{
			BudgetID:     b.ID,
			OwnerID:      b.OwnerID,
			CategoryID:   b.CategoryID,
			CategoryName: name,
			Month:        b.Month,
			Spent:        ev.Spent.Round(),
			Limit:        ev.Limit,
			Pct:          ev.Pct,
		})
	}
	return pass
}

// Tracker remembers the last status of each budget per owner so successive
// passes only notify on transitions.
type Tracker struct {
	mu     sync.Mutex
	owners map[string]map[string]Status
}

func NewTracker() *Tracker {
	return &Tracker{owners: make(map[string]map[string]Status)}
}

// Recompute runs a pass for owner against the remembered statuses and
// records the new ones. Passes for the same owner are serialized.
func (t *Tracker) Recompute(owner string, budgets []core.Budget, txs []core.Transaction, conv ledger.Converter, categories []core.Category) Pass {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.owners[owner]
	pass := Recompute(budgets, txs, conv, categories, prev)

	next := make(map[string]Status, len(prev)+len(pass.Evaluations))
	for id, s := range prev {
		next[id] = s
	}
	for _, ev := range pass.Evaluations {
		next[ev.Budget.ID] = ev.Status
	}
	t.owners[owner] = next
	return pass
}

// Status returns the remembered status of a budget.
func (t *Tracker) Status(owner, budgetID string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.owners[owner][budgetID]
	return s, ok
}

// Forget drops the remembered status of a deleted budget.
func (t *Tracker) Forget(owner, budgetID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.owners[owner], budgetID)
}
