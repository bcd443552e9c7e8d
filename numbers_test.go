package main

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinguoToISO(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"113/05/01", "2024-05-01", false},
		{"99/12/31", "2010-12-31", false},
		{" 113/02/29 ", "2024-02-29", false},
		{"112/02/29", "", true},
		{"113-05-01", "", true},
		{"abc/05/01", "", true},
		{"113/xx/01", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := minguoToISO(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("minguoToISO(%q): expected error, got %q", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("minguoToISO(%q): unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("minguoToISO(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"1,234", "1234", false},
		{"1,234,567.50", "1234567.5", false},
		{" 12.5 ", "12.5", false},
		{"-0.35", "-0.35", false},
		{"0", "0", false},
		{"", "", true},
		{"   ", "", true},
		{"-", "", true},
		{"--", "", true},
		{"X0.00", "", true},
		{"abc", "", true},
		{"12..5", "", true},
	}
	for _, tt := range tests {
		got, err := parseNumber(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseNumber(%q): expected error, got %s", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseNumber(%q): unexpected error: %v", tt.raw, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("parseNumber(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestParseOptionalNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"795.0000", ptr(795.0)},
		{"1,234", ptr(1234.0)},
		{"-", nil},
		{"", nil},
		{"n/a", nil},
		{"X", nil},
	}
	for _, tt := range tests {
		got := parseOptionalNumber(tt.raw)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("parseOptionalNumber(%q) = %v, want nil", tt.raw, *got)
		case tt.want != nil && got == nil:
			t.Errorf("parseOptionalNumber(%q) = nil, want %v", tt.raw, *tt.want)
		case tt.want != nil && *got != *tt.want:
			t.Errorf("parseOptionalNumber(%q) = %v, want %v", tt.raw, *got, *tt.want)
		}
	}
}

func TestSharesToThousands(t *testing.T) {
	tests := []struct {
		shares string
		want   int64
	}{
		{"1234567", 1235},
		{"1234499", 1234},
		{"499", 0},
		{"500", 1},
		{"1500", 2},
		{"0", 0},
		{"-5000", 0},
	}
	for _, tt := range tests {
		if got := sharesToThousands(decimal.RequireFromString(tt.shares)); got != tt.want {
			t.Errorf("sharesToThousands(%s) = %d, want %d", tt.shares, got, tt.want)
		}
	}
}

func TestVolumeEncodingsAgree(t *testing.T) {
	fromString, err := parseNumber("25,123,456")
	if err != nil {
		t.Fatalf("parseNumber: %v", err)
	}
	fromFloat := decimal.NewFromFloat(25123456)

	a, b := sharesToThousands(fromString), sharesToThousands(fromFloat)
	if a != b || a != 25123 {
		t.Fatalf("string encoding gave %d, float encoding gave %d, want 25123", a, b)
	}
}

func TestRoundPrice(t *testing.T) {
	if got := roundPriceFloat(12.345); got != 12.35 {
		t.Errorf("roundPriceFloat(12.345) = %v, want 12.35", got)
	}
	if got := roundPriceFloat(790.1234); got != 790.12 {
		t.Errorf("roundPriceFloat(790.1234) = %v, want 790.12", got)
	}
	if got := roundPrice(decimal.RequireFromString("1005.005")); got != 1005.01 {
		t.Errorf("roundPrice(1005.005) = %v, want 1005.01", got)
	}
}

func TestNormalizeBars(t *testing.T) {
	bars := []DailyBar{
		{Date: "2024-05-03", Close: 3},
		{Date: "2024-05-01", Close: 1},
		{Date: "2024-05-02", Close: 2},
		{Date: "2024-05-01", Close: 11},
	}
	got := normalizeBars(bars)

	wantDates := []string{"2024-05-01", "2024-05-02", "2024-05-03"}
	var dates []string
	for _, b := range got {
		dates = append(dates, b.Date)
	}
	if !reflect.DeepEqual(dates, wantDates) {
		t.Fatalf("dates = %v, want %v", dates, wantDates)
	}
	if got[0].Close != 11 {
		t.Errorf("duplicate date should keep the last occurrence, got close %v", got[0].Close)
	}
	if normalizeBars(nil) != nil {
		t.Error("expected nil for nil input")
	}
}

func assertStrictlyAscending(t *testing.T, bars []DailyBar) {
	t.Helper()
	for i := 1; i < len(bars); i++ {
		if bars[i-1].Date >= bars[i].Date {
			t.Fatalf("bars not strictly ascending at %d: %s then %s", i, bars[i-1].Date, bars[i].Date)
		}
	}
}

func ptr[T any](v T) *T { return &v }
