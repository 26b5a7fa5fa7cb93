package events

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMultiSinkFansOut(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	sink := MultiSink{first, nil, second, LogSink{Logger: zap.NewNop()}}

	env := NewEnvelope("pool-1", FeeAdjusted{NewFeeBasisPoints: 50}, time.Unix(1700000000, 0))
	sink.Record(env)

	if len(first.Events) != 1 || len(second.Events) != 1 {
		t.Fatalf("expected one event per sink: %d %d", len(first.Events), len(second.Events))
	}
	if first.Events[0].Type != TypeFeeAdjusted {
		t.Fatalf("type mismatch: %s", first.Events[0].Type)
	}
	if env.ID == "" || env.PoolID != "pool-1" {
		t.Fatalf("envelope not stamped: %+v", env)
	}
}
