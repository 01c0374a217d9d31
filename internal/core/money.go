// Package core provides the value types shared by the cashbook engine.
//
// This file contains currency codes, the Money value type and parsing of
// user-entered decimal amounts.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits amounts are accumulated with.
const Scale = 2

// CurrencyCode is a short ISO-like code such as "SSP", "USD" or "KES".
type CurrencyCode string

// Currencies lists the codes offered by default.
var Currencies = []CurrencyCode{"SSP", "USD", "KES"}

// ParseCurrency normalizes s to upper case and validates it.
func ParseCurrency(s string) (CurrencyCode, error) {
	c := CurrencyCode(strings.ToUpper(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

func (c CurrencyCode) Validate() error {
	if len(c) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
	}
	for _, r := range c {
		if r > unicode.MaxASCII || !unicode.IsUpper(r) {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
		}
	}
	return nil
}

func (c CurrencyCode) String() string {
	return string(c)
}

// Money pairs an amount with its currency. Arithmetic is only defined
// between values of the same currency.
type Money struct {
	Amount   decimal.Decimal
	Currency CurrencyCode
}

func NewMoney(amount decimal.Decimal, currency CurrencyCode) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns a zero amount in the given currency.
func Zero(currency CurrencyCode) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// Round returns the value rounded half away from zero to Scale digits.
func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(Scale), Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return m.Currency.Validate()
}

// String formats the value as "12.34 USD".
func (m Money) String() string {
	return m.Amount.StringFixed(Scale) + " " + string(m.Currency)
}

// ParseAmount converts a user-entered decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Signs, empty input and zero are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(Scale)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
