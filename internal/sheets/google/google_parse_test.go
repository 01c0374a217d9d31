package google

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseRates(t *testing.T) {
	values := [][]any{
		{"Target", "Base", "Rate", "Notes"},
		{"SSP", "USD", "6000"},
		{"ssp", "kes", "46,5", "comma decimal"},
		{"", "", ""},
		{"SSP", "USD", "-1"},
		{"SSP", "SSP", "1"},
		{"EURO", "USD", "0.9"},
		{"EUR", "USD"},
	}
	rates, skipped, err := parseRates(values, "u1")
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(rates) != 2 || skipped != 4 {
		t.Fatalf("rates=%v skipped=%d", rates, skipped)
	}
	if rates[0].Base != "USD" || rates[0].Target != "SSP" || !rates[0].Rate.Equal(decimal.NewFromInt(6000)) || rates[0].OwnerID != "u1" {
		t.Errorf("first rate = %+v", rates[0])
	}
	if rates[1].Base != "KES" || !rates[1].Rate.Equal(decimal.RequireFromString("46.5")) {
		t.Errorf("second rate = %+v", rates[1])
	}
}

func TestParseRates_BadHeader(t *testing.T) {
	_, _, err := parseRates([][]any{{"From", "To", "Rate"}}, "u1")
	if err == nil || !strings.Contains(err.Error(), "unexpected rates header") {
		t.Fatalf("expected header error, got %v", err)
	}

	rates, skipped, err := parseRates(nil, "u1")
	if err != nil || rates != nil || skipped != 0 {
		t.Fatalf("empty sheet: %v %d %v", rates, skipped, err)
	}
}
