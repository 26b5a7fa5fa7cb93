package policy

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"pgregory.net/rapid"

	"liquidityflow/internal/domain"
)

func TestComputeFee(t *testing.T) {
	cases := []struct {
		amount uint64
		bps    uint64
		want   uint64
	}{
		{10_000, 50, 50},
		{10_000, 25, 25},
		{399, 25, 0},
		{400, 25, 1},
		{1_000_000, 0, 0},
		{math.MaxUint64, 1000, math.MaxUint64 / 10},
	}
	for _, tc := range cases {
		got, err := ComputeFee(tc.amount, tc.bps)
		if err != nil {
			t.Fatalf("fee(%d,%d): %v", tc.amount, tc.bps, err)
		}
		if got != tc.want {
			t.Fatalf("fee(%d,%d) = %d, want %d", tc.amount, tc.bps, got, tc.want)
		}
	}
}

func TestComputeFeeRejectsAboveCap(t *testing.T) {
	_, err := ComputeFee(100, domain.MaxFeeBasisPoints+1)
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestComputeFeeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		amount := rapid.Uint64().Draw(t, "amount")
		bps := rapid.Uint64Range(0, domain.MaxFeeBasisPoints).Draw(t, "bps")

		fee, err := ComputeFee(amount, bps)
		if err != nil {
			t.Fatalf("fee: %v", err)
		}
		if fee > amount {
			t.Fatalf("fee %d exceeds amount %d", fee, amount)
		}

		want := new(big.Int).SetUint64(amount)
		want.Mul(want, new(big.Int).SetUint64(bps))
		want.Div(want, big.NewInt(10_000))
		if want.Uint64() != fee {
			t.Fatalf("fee %d, want %s", fee, want)
		}
	})
}

func TestSelectFeeTier(t *testing.T) {
	if got := SelectFeeTier(51); got != 50 {
		t.Fatalf("tier(51) = %d", got)
	}
	if got := SelectFeeTier(50); got != 10 {
		t.Fatalf("tier(50) = %d", got)
	}
	if got := SelectFeeTier(0); got != 10 {
		t.Fatalf("tier(0) = %d", got)
	}
}

func TestFeeTierScheduleValidate(t *testing.T) {
	s := FeeTierSchedule{VolatilityThreshold: 10, HighFeeBps: 2000, LowFeeBps: 5}
	if err := s.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
	if err := DefaultFeeTiers().Validate(); err != nil {
		t.Fatalf("default tiers: %v", err)
	}
}

func TestMinAmountOut(t *testing.T) {
	got, err := MinAmountOut(10_000, 100)
	if err != nil {
		t.Fatalf("min out: %v", err)
	}
	if got != 9_900 {
		t.Fatalf("min out = %d", got)
	}
	if _, err := MinAmountOut(10_000, domain.MaxSlippageBasisPoints+1); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if _, err := CheckedAdd(math.MaxUint64, 1); !errors.Is(err, domain.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if v, err := CheckedAdd(500, 500); err != nil || v != 1000 {
		t.Fatalf("add: %d %v", v, err)
	}
	if _, err := CheckedSub(1, 2); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}
