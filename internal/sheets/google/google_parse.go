package google

import (
	"fmt"
	"strings"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
)

// parseRates converts a values matrix with a Base, Target, Rate header into
// rates for ownerID. It returns the number of data rows it could not use.
func parseRates(values [][]any, ownerID string) ([]core.FxRate, int, error) {
	if len(values) == 0 {
		return nil, 0, nil
	}
	headers := toStrings(values[0])
	colBase, colTarget, colRate := indexOf(headers, "Base"), indexOf(headers, "Target"), indexOf(headers, "Rate")
	if colBase == -1 || colTarget == -1 || colRate == -1 {
		return nil, 0, fmt.Errorf("unexpected rates header: want Base, Target, Rate; got headers=%v", headers)
	}

	var (
		out     []core.FxRate
		skipped int
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if strings.Join(row, "") == "" {
			continue
		}
		r, ok := parseRateRow(row, colBase, colTarget, colRate)
		if !ok {
			skipped++
			continue
		}
		r.OwnerID = ownerID
		out = append(out, r)
	}
	return out, skipped, nil
}

func parseRateRow(row []string, colBase, colTarget, colRate int) (core.FxRate, bool) {
	base, err := core.ParseCurrency(safeGet(row, colBase))
	if err != nil {
		return core.FxRate{}, false
	}
	target, err := core.ParseCurrency(safeGet(row, colTarget))
	if err != nil {
		return core.FxRate{}, false
	}
	// Sheets may render decimals with a comma.
	rate, err := decimal.NewFromString(strings.ReplaceAll(safeGet(row, colRate), ",", "."))
	if err != nil {
		return core.FxRate{}, false
	}
	r := core.FxRate{Base: base, Target: target, Rate: rate}
	if r.Validate() != nil {
		return core.FxRate{}, false
	}
	return r, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
