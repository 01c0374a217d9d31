package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"60000", "60000", true},
		{"-1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoney(decimal.RequireFromString("10.10"), "USD")
	b := NewMoney(decimal.RequireFromString("0.20"), "USD")

	sum, err := a.Add(b)
	if err != nil || sum.Amount.String() != "10.3" {
		t.Fatalf("Add() = %v, %v", sum, err)
	}
	diff, err := a.Sub(b)
	if err != nil || diff.Amount.String() != "9.9" {
		t.Fatalf("Sub() = %v, %v", diff, err)
	}
	if _, err := a.Add(NewMoney(decimal.NewFromInt(1), "KES")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
	if s := NewMoney(decimal.RequireFromString("3.14159"), "SSP").Round().String(); s != "3.14 SSP" {
		t.Fatalf("Round().String() = %q", s)
	}
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	if err != nil || c != "USD" {
		t.Fatalf("ParseCurrency() = %q, %v", c, err)
	}
	for _, bad := range []string{"", "US", "USDT", "U$D", "ÜSD"} {
		if _, err := ParseCurrency(bad); !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("%q expected ErrInvalidCurrency, got %v", bad, err)
		}
	}
}
