package utils

import (
	"math/big"
	"testing"
)

func TestFormatBigInt(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		decimals uint8
		want     string
	}{
		{"fractional", "1234500000000000000", 18, "1.2345"},
		{"whole", "2000000000000000000", 18, "2"},
		{"zero", "0", 18, "0"},
		{"no decimals", "12345", 0, "12345"},
		{"sub-unit", "100", 6, "0.0001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, ok := new(big.Int).SetString(tc.amount, 10)
			if !ok {
				t.Fatalf("bad fixture %q", tc.amount)
			}
			if got := FormatBigInt(amount, tc.decimals); got != tc.want {
				t.Errorf("FormatBigInt(%s, %d) = %q, want %q", tc.amount, tc.decimals, got, tc.want)
			}
		})
	}
}

func TestCalculateValueUSD(t *testing.T) {
	amount, _ := new(big.Int).SetString("2500000000000000000", 10) // 2.5 ETH
	got := CalculateValueUSD(amount, 18, 3000)
	if got != 7500 {
		t.Errorf("expected 7500, got %f", got)
	}
}

func TestParseRawAmount(t *testing.T) {
	if _, err := ParseRawAmount("not-a-number"); err == nil {
		t.Error("expected error for malformed amount")
	}
	amount, err := ParseRawAmount("100000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount.String() != "100000000" {
		t.Errorf("expected 100000000, got %s", amount)
	}
}

func TestBatchStrings(t *testing.T) {
	batches := BatchStrings([]string{"a", "b", "c", "d", "e"}, 2)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[2]) != 1 || batches[2][0] != "e" {
		t.Errorf("unexpected final batch: %v", batches[2])
	}
}
