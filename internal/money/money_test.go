package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{name: "zero", input: "0", expected: 0},
		{name: "one cent", input: "0.01", expected: 1},
		{name: "whole amount", input: "1500", expected: 150000},
		{name: "two decimals", input: "1000.01", expected: 100001},
		{name: "half cent rounds up", input: "10.005", expected: 1001},
		{name: "below half cent rounds down", input: "10.004", expected: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToMinorUnits(decimal.RequireFromString(tt.input))
			if result != tt.expected {
				t.Errorf("ToMinorUnits(%s) = %d; want %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestToMajorUnits(t *testing.T) {
	tests := []struct {
		cents    int64
		expected string
	}{
		{cents: 0, expected: "0"},
		{cents: 1, expected: "0.01"},
		{cents: 150000, expected: "1500"},
		{cents: 100001, expected: "1000.01"},
	}

	for _, tt := range tests {
		result := ToMajorUnits(tt.cents)
		if !result.Equal(decimal.RequireFromString(tt.expected)) {
			t.Errorf("ToMajorUnits(%d) = %s; want %s", tt.cents, result, tt.expected)
		}
	}
}

func TestSplitShare(t *testing.T) {
	earner := decimal.RequireFromString("0.97")

	tests := []struct {
		name         string
		total        int64
		wantEarner   int64
		wantPlatform int64
	}{
		{name: "zero total", total: 0, wantEarner: 0, wantPlatform: 0},
		{name: "single cent goes to earner", total: 1, wantEarner: 1, wantPlatform: 0},
		{name: "odd small total", total: 33, wantEarner: 32, wantPlatform: 1},
		{name: "round course price", total: 150000, wantEarner: 145500, wantPlatform: 4500},
		{name: "odd course price", total: 100001, wantEarner: 97001, wantPlatform: 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			share := SplitShare(tt.total, earner)
			if share.EarnerCents != tt.wantEarner || share.PlatformCents != tt.wantPlatform {
				t.Errorf("SplitShare(%d) = %+v; want earner=%d platform=%d", tt.total, share, tt.wantEarner, tt.wantPlatform)
			}
		})
	}
}

func TestSplitShareAlwaysSumsToTotal(t *testing.T) {
	percents := []string{"0", "0.5", "0.97", "0.333", "0.999", "1"}

	for _, p := range percents {
		pct := decimal.RequireFromString(p)
		for total := int64(0); total <= 20000; total++ {
			share := SplitShare(total, pct)
			if share.EarnerCents+share.PlatformCents != total {
				t.Fatalf("SplitShare(%d, %s) = %+v does not sum to total", total, p, share)
			}
			if share.EarnerCents < 0 || share.PlatformCents < 0 {
				t.Fatalf("SplitShare(%d, %s) = %+v has a negative part", total, p, share)
			}
		}
	}
}
