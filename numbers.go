package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const minguoOffset = 1911

var thousand = decimal.NewFromInt(1000)

// parseNumber parses an upstream numeric string such as "1,234.50".
// Placeholders used by TWSE for "no trade" ("-", "--", "X0.00") are errors.
func parseNumber(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if s == "" || strings.Trim(s, "-") == "" {
		return decimal.Zero, fmt.Errorf("empty number %q", raw)
	}
	if strings.HasPrefix(s, "X") {
		return decimal.Zero, fmt.Errorf("placeholder number %q", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse number %q: %w", raw, err)
	}
	return d, nil
}

// parseOptionalNumber returns nil when raw is absent or not numeric.
func parseOptionalNumber(raw string) *float64 {
	d, err := parseNumber(raw)
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func roundPrice(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func roundPriceFloat(f float64) float64 {
	return roundPrice(decimal.NewFromFloat(f))
}

// sharesToThousands converts a raw share count to thousands of shares,
// rounding half away from zero. Negative input yields 0.
func sharesToThousands(shares decimal.Decimal) int64 {
	v := shares.Div(thousand).Round(0).IntPart()
	if v < 0 {
		return 0
	}
	return v
}

// minguoToISO converts an ROC calendar date ("113/05/01") to "2024-05-01".
func minguoToISO(raw string) (string, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed minguo date %q", raw)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed minguo year %q: %w", raw, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed minguo month %q: %w", raw, err)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed minguo day %q: %w", raw, err)
	}
	t := time.Date(year+minguoOffset, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return "", fmt.Errorf("invalid minguo date %q", raw)
	}
	return t.Format("2006-01-02"), nil
}

// normalizeBars sorts by date and drops duplicate dates, keeping the last
// occurrence of each.
func normalizeBars(bars []DailyBar) []DailyBar {
	if len(bars) == 0 {
		return bars
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })

	out := bars[:0]
	for _, bar := range bars {
		if n := len(out); n > 0 && out[n-1].Date == bar.Date {
			out[n-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

// taipeiLocation falls back to a fixed UTC+8 zone when tzdata is missing.
func taipeiLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}
