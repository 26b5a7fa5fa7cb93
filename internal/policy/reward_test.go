package policy

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"liquidityflow/internal/domain"
)

func TestComputeRewardScenario(t *testing.T) {
	got, err := ComputeReward(1000, 2000, domain.RewardMultiplier)
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if got != 30 {
		t.Fatalf("reward = %d, want 30", got)
	}
}

func TestComputeRewardWidensSum(t *testing.T) {
	// The sum overflows 64 bits but the scaled reward does not.
	got, err := ComputeReward(math.MaxUint64, math.MaxUint64, domain.RewardMultiplier)
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if got == 0 {
		t.Fatalf("expected a non-zero reward")
	}

	if _, err := ComputeReward(math.MaxUint64, math.MaxUint64, 1000); !errors.Is(err, domain.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestComputeRewardMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Uint64Range(0, math.MaxUint64/4).Draw(t, "a")
		b := rapid.Uint64Range(0, math.MaxUint64/4).Draw(t, "b")
		da := rapid.Uint64Range(0, math.MaxUint64/4).Draw(t, "da")
		db := rapid.Uint64Range(0, math.MaxUint64/4).Draw(t, "db")
		m := rapid.Uint64Range(0, 1000).Draw(t, "multiplier")

		base, err := ComputeReward(a, b, m)
		if err != nil {
			t.Fatalf("base: %v", err)
		}
		moreA, err := ComputeReward(a+da, b, m)
		if err != nil {
			t.Fatalf("more a: %v", err)
		}
		moreB, err := ComputeReward(a, b+db, m)
		if err != nil {
			t.Fatalf("more b: %v", err)
		}
		if moreA < base || moreB < base {
			t.Fatalf("reward decreased: base %d, a+ %d, b+ %d", base, moreA, moreB)
		}
	})
}
