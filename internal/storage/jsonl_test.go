package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"liquidityflow/internal/events"
)

func TestEventLogAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	log := NewEventLog(path, nil)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	log.Record(events.NewEnvelope("pool-1", events.TokensStaked{Participant: "alice", Amount: 5, TotalStaked: 5}, at))
	log.Record(events.NewEnvelope("pool-1", events.FeeAdjusted{Authority: "gov", MarketVolatility: 75, OldFeeBasisPoints: 25, NewFeeBasisPoints: 50}, at))

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var types []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line struct {
			PoolID string          `json:"pool_id"`
			Type   string          `json:"type"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		if line.PoolID != "pool-1" {
			t.Fatalf("pool id mismatch: %s", line.PoolID)
		}
		types = append(types, line.Type)
	}
	if len(types) != 2 || types[0] != events.TypeTokensStaked || types[1] != events.TypeFeeAdjusted {
		t.Fatalf("unexpected types: %v", types)
	}
}

func TestJsonlWriterEmptyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.jsonl")
	if err := NewJsonlWriter(path).Append(); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file, got %v", err)
	}
}
