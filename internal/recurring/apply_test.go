package recurring

import (
	"errors"
	"testing"

	"cashbook/internal/core"
)

func TestApplyNotDue(t *testing.T) {
	r := rule(core.Monthly, core.NewDate(2025, 6, 10))

	tx, got, err := Apply(r, core.NewDate(2025, 6, 9), nil)
	if !errors.Is(err, core.ErrNotDue) {
		t.Fatalf("expected ErrNotDue, got %v", err)
	}
	if tx.ID != "" {
		t.Errorf("no transaction expected, got %+v", tx)
	}
	if !got.NextRunDate.Equal(r.NextRunDate) {
		t.Errorf("next run changed to %s", got.NextRunDate)
	}
}

func TestApplyPostsOneAndAdvancesOnce(t *testing.T) {
	r := rule(core.Monthly, core.NewDate(2025, 1, 31))
	ref := core.NewDate(2025, 5, 2) // several periods late

	tx, next, err := Apply(r, ref, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if tx.ID == "" {
		t.Error("transaction must get an id")
	}
	if !tx.Date.Equal(ref) {
		t.Errorf("transaction date = %s, want %s", tx.Date, ref)
	}
	if tx.Note != DefaultNote {
		t.Errorf("note = %q, want %q", tx.Note, DefaultNote)
	}
	if !tx.Amount.Equal(r.Amount) || tx.Currency != "USD" || tx.AccountID != "acc1" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if want := core.NewDate(2025, 2, 28); !next.NextRunDate.Equal(want) {
		t.Errorf("next run = %s, want %s", next.NextRunDate, want)
	}

	// second application keeps the anchor day
	_, next, err = Apply(next, ref, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if want := core.NewDate(2025, 3, 31); !next.NextRunDate.Equal(want) {
		t.Errorf("next run = %s, want %s", next.NextRunDate, want)
	}
}

func TestApplyWithoutAnchorUsesNextRun(t *testing.T) {
	r := rule(core.Monthly, core.NewDate(2024, 1, 31))
	r.AnchorDate = core.Date{}

	_, next, err := Apply(r, core.NewDate(2024, 1, 31), nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !next.NextRunDate.Equal(core.NewDate(2024, 2, 29)) {
		t.Errorf("next run = %s", next.NextRunDate)
	}
	_, next, _ = Apply(next, core.NewDate(2024, 3, 1), nil)
	if !next.NextRunDate.Equal(core.NewDate(2024, 3, 31)) {
		t.Errorf("next run = %s", next.NextRunDate)
	}
}

func TestApplyKindFromCategory(t *testing.T) {
	categories := []core.Category{
		{ID: "salary", Name: "Salary", Kind: core.Income},
	}
	tests := []struct {
		name string
		cat  core.CategoryRef
		want core.Kind
	}{
		{"category kind wins", core.CategoryID("salary"), core.Income},
		{"unknown category uses rule kind", core.CategoryID("missing"), core.Expense},
		{"dangling uses rule kind", core.DanglingCategory("salary"), core.Expense},
		{"uncategorized uses rule kind", core.NoCategory(), core.Expense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rule(core.Weekly, core.NewDate(2025, 6, 1))
			r.Category = tt.cat
			r.Note = "  rent  "
			tx, _, err := Apply(r, core.NewDate(2025, 6, 1), categories)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if tx.Kind != tt.want {
				t.Errorf("kind = %s, want %s", tx.Kind, tt.want)
			}
			if tx.Note != "rent" {
				t.Errorf("note = %q", tx.Note)
			}
		})
	}
}

func TestApplyRequiresAccount(t *testing.T) {
	r := rule(core.Daily, core.NewDate(2025, 6, 1))
	r.AccountID = ""
	if _, _, err := Apply(r, core.NewDate(2025, 6, 1), nil); !errors.Is(err, core.ErrMissingAccount) {
		t.Fatalf("expected ErrMissingAccount, got %v", err)
	}
}
