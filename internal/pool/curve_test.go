package pool

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"liquidityflow/internal/domain"
)

func TestQuoteOutput(t *testing.T) {
	got, err := QuoteOutput(9_950, 1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got != 9_851 {
		t.Fatalf("quote = %d, want 9851", got)
	}

	got, err = QuoteOutput(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	if err != nil {
		t.Fatalf("quote at max: %v", err)
	}
	if got != math.MaxUint64/2 {
		t.Fatalf("quote at max = %d", got)
	}
}

func TestQuoteOutputRejectsEmptyPool(t *testing.T) {
	if _, err := QuoteOutput(10, 0, 100); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if _, err := QuoteOutput(0, 100, 100); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestQuoteOutputDeterministicAndBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		amountIn := rapid.Uint64Range(1, math.MaxUint64).Draw(t, "amountIn")
		reserveIn := rapid.Uint64Range(1, math.MaxUint64).Draw(t, "reserveIn")
		reserveOut := rapid.Uint64Range(1, math.MaxUint64).Draw(t, "reserveOut")

		first, err := QuoteOutput(amountIn, reserveIn, reserveOut)
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		second, err := QuoteOutput(amountIn, reserveIn, reserveOut)
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if first != second {
			t.Fatalf("non-deterministic quote: %d != %d", first, second)
		}
		if first >= reserveOut {
			t.Fatalf("quote %d drains reserve %d", first, reserveOut)
		}
	})
}
