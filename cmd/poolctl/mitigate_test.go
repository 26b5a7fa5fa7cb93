package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"liquidityflow/internal/risk"
)

type flakyOracle struct {
	failures int
	calls    int
}

func (f *flakyOracle) ReadPrice(context.Context, string) (risk.PriceSample, error) {
	f.calls++
	if f.calls <= f.failures {
		return risk.PriceSample{}, errors.New("rpc timeout")
	}
	return risk.PriceSample{Price: 42}, nil
}

func TestRetryOracleRetriesUntilSuccess(t *testing.T) {
	inner := &flakyOracle{failures: 2}
	o := retryOracle{inner: inner, maxRetries: 3, backoff: time.Millisecond, logger: zap.NewNop()}

	sample, err := o.ReadPrice(context.Background(), "feed")
	if err != nil {
		t.Fatalf("read price: %v", err)
	}
	if sample.Price != 42 || inner.calls != 3 {
		t.Fatalf("unexpected result: price=%d calls=%d", sample.Price, inner.calls)
	}
}

func TestRetryOracleGivesUp(t *testing.T) {
	inner := &flakyOracle{failures: 10}
	o := retryOracle{inner: inner, maxRetries: 1, backoff: time.Millisecond, logger: zap.NewNop()}

	if _, err := o.ReadPrice(context.Background(), "feed"); err == nil {
		t.Fatalf("expected error")
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", inner.calls)
	}
}
