package fx

import (
	"fmt"
	"strings"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
)

// SSP is the base currency of the built-in rate constants.
const SSP core.CurrencyCode = "SSP"

// Source selects which RateResolver backs an owner's conversions.
type Source string

const (
	SourceStatic Source = "static"
	SourceStored Source = "stored"
)

func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceStatic, SourceStored:
		return src, nil
	case "":
		return SourceStatic, nil
	default:
		return "", fmt.Errorf("unknown rate source %q", s)
	}
}

// RateResolver answers "how many units of to is one unit of from worth".
// ok is false when the pair is unknown; the reverse pair is not consulted.
type RateResolver interface {
	Lookup(from, to core.CurrencyCode) (rate decimal.Decimal, ok bool)
}

type pair struct {
	from, to core.CurrencyCode
}

type rateTable map[pair]decimal.Decimal

func (t rateTable) Lookup(from, to core.CurrencyCode) (decimal.Decimal, bool) {
	r, ok := t[pair{from, to}]
	return r, ok
}

// DefaultRates returns the built-in constants: USD→SSP 6000 and KES→SSP 46.5.
func DefaultRates() []core.FxRate {
	return []core.FxRate{
		{Base: "USD", Target: SSP, Rate: decimal.NewFromInt(6000)},
		{Base: "KES", Target: SSP, Rate: decimal.RequireFromString("46.5")},
	}
}

// StaticRateResolver serves the built-in constants plus any extra pairs
// given at construction. Extra pairs override the constants.
type StaticRateResolver struct {
	rates rateTable
}

func NewStaticRateResolver(extra ...core.FxRate) *StaticRateResolver {
	t := make(rateTable)
	for _, r := range DefaultRates() {
		t[pair{r.Base, r.Target}] = r.Rate
	}
	for _, r := range extra {
		t[pair{r.Base, r.Target}] = r.Rate
	}
	return &StaticRateResolver{rates: t}
}

func (s *StaticRateResolver) Lookup(from, to core.CurrencyCode) (decimal.Decimal, bool) {
	return s.rates.Lookup(from, to)
}

// StoredRateResolver serves one owner's rate table. Later rows for the same
// (base, target) replace earlier ones.
type StoredRateResolver struct {
	rates rateTable
}

func NewStoredRateResolver(rates []core.FxRate) (*StoredRateResolver, error) {
	t := make(rateTable, len(rates))
	for _, r := range rates {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rate %s→%s: %w", r.Base, r.Target, err)
		}
		t[pair{r.Base, r.Target}] = r.Rate
	}
	return &StoredRateResolver{rates: t}, nil
}

func (s *StoredRateResolver) Lookup(from, to core.CurrencyCode) (decimal.Decimal, bool) {
	return s.rates.Lookup(from, to)
}

// Len returns the number of stored pairs.
func (s *StoredRateResolver) Len() int {
	return len(s.rates)
}

// NewResolver builds the resolver for src. Stored rates are ignored by the
// static source.
func NewResolver(src Source, stored []core.FxRate) (RateResolver, error) {
	switch src {
	case SourceStored:
		r, err := NewStoredRateResolver(stored)
		if err != nil {
			return nil, err
		}
		return r, nil
	case SourceStatic, "":
		return NewStaticRateResolver(), nil
	default:
		return nil, fmt.Errorf("unknown rate source %q", src)
	}
}
