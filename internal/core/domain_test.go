package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		name   string
		from   Date
		n      int
		anchor int
		want   Date
	}{
		{"jan 31 to feb non-leap", NewDate(2025, 1, 31), 1, 31, NewDate(2025, 2, 28)},
		{"jan 31 to feb leap", NewDate(2024, 1, 31), 1, 31, NewDate(2024, 2, 29)},
		{"feb 28 back to anchor 31", NewDate(2025, 2, 28), 1, 31, NewDate(2025, 3, 31)},
		{"quarter from nov 30", NewDate(2025, 11, 30), 3, 30, NewDate(2026, 2, 28)},
		{"year from leap day", NewDate(2024, 2, 29), 12, 29, NewDate(2025, 2, 28)},
		{"no anchor keeps day", NewDate(2025, 3, 15), 1, 0, NewDate(2025, 4, 15)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.from.AddMonthsClamped(tc.n, tc.anchor)
			if !got.Equal(tc.want) {
				t.Errorf("AddMonthsClamped() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseMonth(t *testing.T) {
	d, err := ParseMonth("2025-06")
	if err != nil || !d.Equal(NewDate(2025, 6, 1)) {
		t.Fatalf("ParseMonth(2025-06) = %s, %v", d, err)
	}
	d, err = ParseMonth("2025-06-17")
	if err != nil || !d.Equal(NewDate(2025, 6, 1)) {
		t.Fatalf("ParseMonth(2025-06-17) = %s, %v", d, err)
	}
	if _, err := ParseMonth("June"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if got := NewDate(2024, 2, 10).MonthEnd(); !got.Equal(NewDate(2024, 2, 29)) {
		t.Fatalf("MonthEnd() = %s", got)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		OwnerID:  "u1",
		Amount:   decimal.NewFromInt(10),
		Currency: "USD",
		Kind:     Expense,
		Date:     NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		name string
		mut  func(*Transaction)
		want error
	}{
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"bad currency", func(tx *Transaction) { tx.Currency = "usd" }, ErrInvalidCurrency},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, ErrInvalidDate},
		{"no owner", func(tx *Transaction) { tx.OwnerID = "" }, ErrMissingOwner},
	}
	for _, tc := range bads {
		t.Run(tc.name, func(t *testing.T) {
			tx := good
			tc.mut(&tx)
			if err := tx.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	b := Budget{
		OwnerID:    "u1",
		CategoryID: "food",
		Month:      NewDate(2025, 6, 1),
		Limit:      decimal.NewFromInt(500),
		Currency:   "USD",
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	mid := b
	mid.Month = NewDate(2025, 6, 15)
	if err := mid.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for mid-month, got %v", err)
	}
	zero := b
	zero.Limit = decimal.Zero
	if err := zero.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if b.Key() != "u1|food|2025-06" {
		t.Fatalf("unexpected key %q", b.Key())
	}
}

func TestFxRateValidate(t *testing.T) {
	ok := FxRate{Base: "USD", Target: "SSP", Rate: decimal.NewFromInt(6000)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, r := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		bad := ok
		bad.Rate = r
		if err := bad.Validate(); !errors.Is(err, ErrInvalidRate) {
			t.Fatalf("rate %s: expected ErrInvalidRate, got %v", r, err)
		}
	}
}

func TestPairRates(t *testing.T) {
	rates, err := PairRates{USDToBase: decimal.NewFromInt(6000), KESToBase: decimal.RequireFromString("46.5")}.Rates("u1")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if len(rates) != 2 || rates[0].Target != "SSP" || rates[1].Base != "KES" {
		t.Fatalf("unexpected rates %+v", rates)
	}
	if _, err := (PairRates{USDToBase: decimal.Zero, KESToBase: decimal.NewFromInt(1)}).Rates("u1"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestResolveCategoryRef(t *testing.T) {
	known := func(id string) bool { return id == "food" }
	empty, food, gone := "", "food", "deleted"

	if ref := ResolveCategoryRef(nil, known); !ref.IsNone() {
		t.Fatalf("nil should be uncategorized")
	}
	if ref := ResolveCategoryRef(&empty, known); !ref.IsNone() {
		t.Fatalf("empty string should be uncategorized")
	}
	if ref := ResolveCategoryRef(&food, known); !ref.Is("food") {
		t.Fatalf("food should resolve")
	}
	ref := ResolveCategoryRef(&gone, known)
	if !ref.IsDangling() || ref.RawID() != "deleted" {
		t.Fatalf("unknown id should be dangling, got %+v", ref)
	}
	if _, ok := ref.ID(); ok {
		t.Fatalf("dangling ref must not resolve")
	}
}
