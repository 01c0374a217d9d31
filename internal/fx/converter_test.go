package fx

import (
	"testing"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func storedConverter(t *testing.T, rates ...core.FxRate) *Converter {
	t.Helper()
	r, err := NewStoredRateResolver(rates)
	require.NoError(t, err)
	return NewConverter(r)
}

func TestConvertIdentity(t *testing.T) {
	c := NewConverter(nil, WithFallback(nil))
	for _, cur := range []core.CurrencyCode{"SSP", "USD", "KES", "EUR"} {
		for _, amt := range []string{"0", "0.01", "12.345", "1000000"} {
			got, err := c.Convert(d(amt), cur, cur)
			require.NoError(t, err)
			assert.True(t, got.Equal(d(amt)), "%s %s", amt, cur)
		}
	}
}

func TestConvertDirectAndInverse(t *testing.T) {
	c := storedConverter(t, core.FxRate{Base: "USD", Target: "SSP", Rate: d("6000")})

	got, err := c.Convert(d("10"), "USD", "SSP")
	require.NoError(t, err)
	assert.True(t, got.Equal(d("60000")), "got %s", got)

	back, err := c.Convert(d("60000"), "SSP", "USD")
	require.NoError(t, err)
	assert.True(t, back.Equal(d("10")), "got %s", back)
}

func TestConvertRoundTrip(t *testing.T) {
	c := storedConverter(t,
		core.FxRate{Base: "USD", Target: "SSP", Rate: d("6000")},
		core.FxRate{Base: "KES", Target: "SSP", Rate: d("46.5")},
	)
	pairs := [][2]core.CurrencyCode{{"USD", "SSP"}, {"SSP", "KES"}, {"KES", "SSP"}}
	for _, p := range pairs {
		for _, amt := range []string{"0.01", "1", "33.33", "98765.43"} {
			there, err := c.Convert(d(amt), p[0], p[1])
			require.NoError(t, err)
			back, err := c.Convert(there, p[1], p[0])
			require.NoError(t, err)
			assert.True(t, back.Round(core.Scale).Equal(d(amt)), "%s %s→%s→%s = %s", amt, p[0], p[1], p[0], back)
		}
	}
}

func TestConvertTriangulatesThroughBase(t *testing.T) {
	c := storedConverter(t,
		core.FxRate{Base: "USD", Target: "SSP", Rate: d("6000")},
		core.FxRate{Base: "SSP", Target: "KES", Rate: d("0.02")},
	)
	got, err := c.Convert(d("1"), "USD", "KES")
	require.NoError(t, err)
	assert.True(t, got.Equal(d("120")), "got %s", got)
}

func TestConvertFallsBackToBuiltInConstants(t *testing.T) {
	c := storedConverter(t)
	got, err := c.Convert(d("10"), "USD", "KES")
	require.NoError(t, err)
	assert.Equal(t, "1290.32", got.StringFixed(2))

	got, err = c.Convert(d("465"), "KES", "SSP")
	require.NoError(t, err)
	assert.True(t, got.Equal(d("21622.5")), "got %s", got)
}

func TestConvertNoPath(t *testing.T) {
	c := storedConverter(t)
	got, err := c.Convert(d("42"), "EUR", "USD")
	require.ErrorIs(t, err, core.ErrNoConversionPath)
	assert.True(t, got.Equal(d("42")), "amount must be returned unchanged")

	m, err := c.ConvertMoney(core.NewMoney(d("42"), "EUR"), "USD")
	require.ErrorIs(t, err, core.ErrNoConversionPath)
	assert.Equal(t, core.CurrencyCode("EUR"), m.Currency)
}

type brokenResolver struct{}

func (brokenResolver) Lookup(from, to core.CurrencyCode) (decimal.Decimal, bool) {
	return decimal.Zero, from == "USD" && to == "SSP"
}

func TestConvertRejectsNonPositiveRate(t *testing.T) {
	c := NewConverter(brokenResolver{})
	_, err := c.Convert(d("1"), "USD", "SSP")
	require.ErrorIs(t, err, core.ErrInvalidRate)

	_, err = c.Convert(d("1"), "SSP", "USD")
	require.ErrorIs(t, err, core.ErrInvalidRate)

	_, err = NewStoredRateResolver([]core.FxRate{{Base: "USD", Target: "SSP", Rate: d("-3")}})
	require.ErrorIs(t, err, core.ErrInvalidRate)
}

func TestStoredResolverUpsert(t *testing.T) {
	r, err := NewStoredRateResolver([]core.FxRate{
		{Base: "USD", Target: "SSP", Rate: d("5000")},
		{Base: "USD", Target: "SSP", Rate: d("6500")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
	rate, ok := r.Lookup("USD", "SSP")
	require.True(t, ok)
	assert.True(t, rate.Equal(d("6500")))
}

func TestNewResolver(t *testing.T) {
	stored := []core.FxRate{{Base: "USD", Target: "SSP", Rate: d("7000")}}

	r, err := NewResolver(SourceStatic, stored)
	require.NoError(t, err)
	rate, _ := r.Lookup("USD", "SSP")
	assert.True(t, rate.Equal(d("6000")))

	r, err = NewResolver(SourceStored, stored)
	require.NoError(t, err)
	rate, _ = r.Lookup("USD", "SSP")
	assert.True(t, rate.Equal(d("7000")))

	r, err = NewResolver(SourceStored, []core.FxRate{{Base: "USD", Target: "SSP", Rate: d("0")}})
	assert.ErrorIs(t, err, core.ErrInvalidRate)
	assert.Nil(t, r)

	_, err = ParseSource("live")
	assert.Error(t, err)
}
