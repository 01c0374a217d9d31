// Package fx converts amounts between currencies.
//
// A Converter resolves a pair in this order: identity, direct rate, inverse
// rate, triangulation through its base currency, the built-in constants
// through SSP. When nothing matches, the amount is returned unchanged together
// with core.ErrNoConversionPath so callers can flag the result as approximate.
package fx

import (
	"fmt"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
)

// divPrecision is the number of decimal places kept when dividing by a rate.
const divPrecision = 16

type Converter struct {
	resolver RateResolver
	base     core.CurrencyCode
	fallback RateResolver
}

type Option func(*Converter)

// WithBase sets the triangulation currency. Defaults to SSP.
func WithBase(base core.CurrencyCode) Option {
	return func(c *Converter) {
		if base != "" {
			c.base = base
		}
	}
}

// WithFallback replaces the built-in constants consulted when the primary
// resolver has no path. A nil fallback disables the step.
func WithFallback(r RateResolver) Option {
	return func(c *Converter) { c.fallback = r }
}

func NewConverter(resolver RateResolver, opts ...Option) *Converter {
	c := &Converter{
		resolver: resolver,
		base:     SSP,
		fallback: NewStaticRateResolver(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the triangulation currency.
func (c *Converter) Base() core.CurrencyCode {
	return c.base
}

// Convert converts amount from one currency to another.
func (c *Converter) Convert(amount decimal.Decimal, from, to core.CurrencyCode) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	if c.resolver != nil {
		out, ok, err := convertVia(c.resolver, c.base, amount, from, to)
		if err != nil {
			return amount, err
		}
		if ok {
			return out, nil
		}
	}
	if c.fallback != nil {
		out, ok, err := convertVia(c.fallback, SSP, amount, from, to)
		if err != nil {
			return amount, err
		}
		if ok {
			return out, nil
		}
	}
	return amount, fmt.Errorf("%w: %s to %s", core.ErrNoConversionPath, from, to)
}

// ConvertMoney converts m into the target currency. On ErrNoConversionPath
// the returned value keeps the input amount and currency.
func (c *Converter) ConvertMoney(m core.Money, to core.CurrencyCode) (core.Money, error) {
	out, err := c.Convert(m.Amount, m.Currency, to)
	if err != nil {
		return m, err
	}
	return core.NewMoney(out, to), nil
}

func convertVia(r RateResolver, base core.CurrencyCode, amount decimal.Decimal, from, to core.CurrencyCode) (decimal.Decimal, bool, error) {
	if out, ok, err := leg(r, amount, from, to); err != nil || ok {
		return out, ok, err
	}
	if from == base || to == base {
		return amount, false, nil
	}
	mid, ok, err := leg(r, amount, from, base)
	if err != nil || !ok {
		return amount, false, err
	}
	out, ok, err := leg(r, mid, base, to)
	if err != nil || !ok {
		return amount, false, err
	}
	return out, true, nil
}

// leg converts a single hop using the direct rate or, failing that, the
// inverse one.
func leg(r RateResolver, amount decimal.Decimal, from, to core.CurrencyCode) (decimal.Decimal, bool, error) {
	if rate, ok := r.Lookup(from, to); ok {
		if !rate.IsPositive() {
			return amount, false, fmt.Errorf("%w: %s→%s is %s", core.ErrInvalidRate, from, to, rate)
		}
		return amount.Mul(rate), true, nil
	}
	if rate, ok := r.Lookup(to, from); ok {
		if !rate.IsPositive() {
			return amount, false, fmt.Errorf("%w: %s→%s is %s", core.ErrInvalidRate, to, from, rate)
		}
		return amount.DivRound(rate, divPrecision), true, nil
	}
	return amount, false, nil
}
