package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily     Interval = "daily"
	Weekly    Interval = "weekly"
	Monthly   Interval = "monthly"
	Quarterly Interval = "quarterly"
	Yearly    Interval = "yearly"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	Interval string

	Kind string

	Account struct {
		ID       string
		OwnerID  string
		Name     string
		Currency CurrencyCode
	}

	// Category may be global (empty OwnerID) or scoped to one owner.
	Category struct {
		ID      string
		OwnerID string
		Name    string
		Kind    Kind
	}

	Transaction struct {
		ID        string
		OwnerID   string
		AccountID string
		Category  CategoryRef
		Amount    decimal.Decimal // always positive, sign comes from Kind
		Currency  CurrencyCode
		Kind      Kind
		Date      Date
		Note      string
	}

	Budget struct {
		ID         string
		OwnerID    string
		CategoryID string
		Month      Date // first day of the month
		Limit      decimal.Decimal
		Currency   CurrencyCode
	}

	RecurringRule struct {
		ID          string
		OwnerID     string
		AccountID   string
		Category    CategoryRef
		Kind        Kind
		Amount      decimal.Decimal
		Currency    CurrencyCode
		Interval    Interval
		AnchorDate  Date
		NextRunDate Date
		Note        string
	}

	FxRate struct {
		OwnerID string
		Base    CurrencyCode
		Target  CurrencyCode
		Rate    decimal.Decimal
	}

	// PairRates is the legacy per-owner fixed pair: how many units of the base
	// currency one USD and one KES are worth.
	PairRates struct {
		Base      CurrencyCode
		USDToBase decimal.Decimal
		KESToBase decimal.Decimal
	}
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Sign is +1 for income and -1 for expense.
func (k Kind) Sign() int64 {
	if k == Income {
		return 1
	}
	return -1
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

func (i Interval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

func ParseInterval(s string) (Interval, error) {
	i := Interval(strings.ToLower(strings.TrimSpace(s)))
	if !i.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	return i, nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.OwnerID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return a.Currency.Validate()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

// Global reports whether the category is shared by every owner.
func (c Category) Global() bool {
	return c.OwnerID == ""
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := t.Currency.Validate(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Note) > 500 {
		return fmt.Errorf("note too long (max 500 characters)")
	}
	return nil
}

// Money returns the transaction amount in its own currency.
func (t Transaction) Money() Money {
	return Money{Amount: t.Amount, Currency: t.Currency}
}

// Signed returns +amount for income and -amount for expense.
func (t Transaction) Signed() decimal.Decimal {
	return t.Amount.Mul(decimal.NewFromInt(t.Kind.Sign()))
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrMissingCategory
	}
	if err := b.Month.Validate(); err != nil {
		return err
	}
	if b.Month.Day() != 1 {
		return fmt.Errorf("%w: budget month must be the first day of the month", ErrInvalidDate)
	}
	if !b.Limit.IsPositive() {
		return ErrInvalidAmount
	}
	return b.Currency.Validate()
}

// Key identifies the (owner, category, month) slot a budget occupies.
func (b Budget) Key() string {
	return b.OwnerID + "|" + b.CategoryID + "|" + b.Month.MonthKey()
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := r.Currency.Validate(); err != nil {
		return err
	}
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if !r.Interval.Valid() {
		return ErrInvalidInterval
	}
	if err := r.NextRunDate.Validate(); err != nil {
		return fmt.Errorf("invalid next run date: %w", err)
	}
	if !r.AnchorDate.IsZero() {
		if err := r.AnchorDate.Validate(); err != nil {
			return fmt.Errorf("invalid anchor date: %w", err)
		}
	}
	return nil
}

func (f FxRate) Validate() error {
	if err := f.Base.Validate(); err != nil {
		return err
	}
	if err := f.Target.Validate(); err != nil {
		return err
	}
	if f.Base == f.Target {
		return fmt.Errorf("%w: base and target are both %s", ErrInvalidRate, f.Base)
	}
	if !f.Rate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}

// Rates expands the pair into rate rows for the given owner.
func (p PairRates) Rates(ownerID string) ([]FxRate, error) {
	base := p.Base
	if base == "" {
		base = "SSP"
	}
	rates := []FxRate{
		{OwnerID: ownerID, Base: "USD", Target: base, Rate: p.USDToBase},
		{OwnerID: ownerID, Base: "KES", Target: base, Rate: p.KESToBase},
	}
	for _, r := range rates {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return rates, nil
}

// Date is a calendar day in UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// ParseMonth parses YYYY-MM (or a full date) into the first day of that month.
func ParseMonth(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01", s); err == nil {
		return DateOf(t), nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, err
	}
	return d.MonthStart(), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

func (d Date) MonthEnd() Date {
	return NewDate(d.Year(), d.Month()+1, 0)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonthsClamped moves n calendar months forward and lands on anchorDay,
// clamped to the last day of the target month. anchorDay <= 0 keeps d's day.
func (d Date) AddMonthsClamped(n, anchorDay int) Date {
	if anchorDay <= 0 {
		anchorDay = d.Day()
	}
	first := NewDate(d.Year(), d.Month()+n, 1)
	last := first.MonthEnd().Day()
	if anchorDay > last {
		anchorDay = last
	}
	return NewDate(first.Year(), first.Month(), anchorDay)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// MonthKey formats the date as YYYY-MM.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}
