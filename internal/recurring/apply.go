package recurring

import (
	"fmt"
	"strings"

	"cashbook/internal/core"

	"github.com/google/uuid"
)

// DefaultNote is used for generated transactions of rules without a note.
const DefaultNote = "Recurring"

// Apply materializes one occurrence of rule as of ref and returns the
// transaction together with the rule advanced by one interval.
//
// It returns core.ErrNotDue when ref precedes the next run date; nothing is
// produced in that case. Missed periods are not caught up: each call posts a
// single transaction dated ref.
func Apply(rule core.RecurringRule, ref core.Date, categories []core.Category) (core.Transaction, core.RecurringRule, error) {
	if !IsDue(rule, ref) {
		return core.Transaction{}, rule, fmt.Errorf("%w: next run %s, reference %s", core.ErrNotDue, rule.NextRunDate, ref)
	}
	if strings.TrimSpace(rule.AccountID) == "" {
		return core.Transaction{}, rule, fmt.Errorf("rule %s: %w", rule.ID, core.ErrMissingAccount)
	}
	next, err := NextRun(rule)
	if err != nil {
		return core.Transaction{}, rule, err
	}

	note := strings.TrimSpace(rule.Note)
	if note == "" {
		note = DefaultNote
	}
	tx := core.Transaction{
		ID:        uuid.NewString(),
		OwnerID:   rule.OwnerID,
		AccountID: rule.AccountID,
		Category:  rule.Category,
		Amount:    rule.Amount,
		Currency:  rule.Currency,
		Kind:      KindFor(rule, categories),
		Date:      ref,
		Note:      note,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, rule, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	advanced := rule
	advanced.NextRunDate = next
	if advanced.AnchorDate.IsZero() {
		advanced.AnchorDate = rule.NextRunDate
	}
	return tx, advanced, nil
}

// KindFor returns the kind of the rule's category when it exists, otherwise
// the rule's own kind.
func KindFor(rule core.RecurringRule, categories []core.Category) core.Kind {
	if id, ok := rule.Category.ID(); ok {
		for _, c := range categories {
			if c.ID == id && c.Kind.Valid() {
				return c.Kind
			}
		}
	}
	return rule.Kind
}
