package oracle

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"liquidityflow/internal/domain"
)

type fakeCaller struct {
	t        *testing.T
	feed     common.Address
	response map[string][]byte
	calls    int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	if msg.To == nil || *msg.To != f.feed {
		f.t.Fatalf("unexpected call target: %v", msg.To)
	}
	if blockNumber != nil {
		f.t.Fatalf("expected latest block")
	}
	feedABI, err := AggregatorV3ABI()
	if err != nil {
		f.t.Fatalf("abi: %v", err)
	}
	for name, method := range feedABI.Methods {
		if bytes.Equal(msg.Data[:4], method.ID) {
			resp, ok := f.response[name]
			if !ok {
				return nil, errors.New("execution reverted")
			}
			return resp, nil
		}
	}
	f.t.Fatalf("unknown selector %x", msg.Data[:4])
	return nil, nil
}

func packRound(t *testing.T, round int64, answer *big.Int, updatedAt int64, answeredIn int64) []byte {
	t.Helper()
	feedABI, err := AggregatorV3ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	data, err := feedABI.Methods["latestRoundData"].Outputs.Pack(
		big.NewInt(round),
		answer,
		big.NewInt(updatedAt),
		big.NewInt(updatedAt),
		big.NewInt(answeredIn),
	)
	if err != nil {
		t.Fatalf("pack round: %v", err)
	}
	return data
}

func packDecimals(t *testing.T, d uint8) []byte {
	t.Helper()
	feedABI, err := AggregatorV3ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	data, err := feedABI.Methods["decimals"].Outputs.Pack(d)
	if err != nil {
		t.Fatalf("pack decimals: %v", err)
	}
	return data
}

func TestAggregatorOracleReadPrice(t *testing.T) {
	feed := common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
	caller := &fakeCaller{t: t, feed: feed, response: map[string][]byte{
		"latestRoundData": packRound(t, 7, big.NewInt(205_000_000_000), 1700000000, 7),
		"decimals":        packDecimals(t, 8),
	}}

	sample, err := NewAggregatorOracle(caller, nil).ReadPrice(context.Background(), feed.Hex())
	if err != nil {
		t.Fatalf("read price: %v", err)
	}
	if sample.Price != 205_000_000_000 {
		t.Fatalf("price mismatch: %d", sample.Price)
	}
	if sample.Decimals != 8 {
		t.Fatalf("decimals mismatch: %d", sample.Decimals)
	}
	if !sample.PublishedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("published at mismatch: %s", sample.PublishedAt)
	}
	if sample.Source != "aggregator:"+feed.Hex() {
		t.Fatalf("source mismatch: %s", sample.Source)
	}
}

func TestAggregatorOracleRejectsMalformedRounds(t *testing.T) {
	feed := common.HexToAddress("0x1111111111111111111111111111111111111111")
	cases := map[string][]byte{
		"negative answer": packRound(t, 7, big.NewInt(-1), 1700000000, 7),
		"zero answer":     packRound(t, 7, big.NewInt(0), 1700000000, 7),
		"carried over":    packRound(t, 7, big.NewInt(100), 1700000000, 6),
		"no timestamp":    packRound(t, 7, big.NewInt(100), 0, 7),
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			caller := &fakeCaller{t: t, feed: feed, response: map[string][]byte{"latestRoundData": resp}}
			_, err := NewAggregatorOracle(caller, nil).ReadPrice(context.Background(), feed.Hex())
			if !errors.Is(err, domain.ErrOracleUnavailable) {
				t.Fatalf("expected oracle unavailable, got %v", err)
			}
		})
	}
}

func TestAggregatorOracleCallFailureIsUnavailable(t *testing.T) {
	feed := common.HexToAddress("0x2222222222222222222222222222222222222222")
	caller := &fakeCaller{t: t, feed: feed, response: map[string][]byte{}}
	_, err := NewAggregatorOracle(caller, nil).ReadPrice(context.Background(), feed.Hex())
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("expected oracle unavailable, got %v", err)
	}
	if _, err := NewAggregatorOracle(caller, nil).ReadPrice(context.Background(), "not-an-address"); !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("expected oracle unavailable for bad address, got %v", err)
	}
}

func TestAggregatorOracleDecimalsCached(t *testing.T) {
	feed := common.HexToAddress("0x3333333333333333333333333333333333333333")
	caller := &fakeCaller{t: t, feed: feed, response: map[string][]byte{
		"latestRoundData": packRound(t, 9, big.NewInt(100_000_000), 1700000000, 9),
		"decimals":        packDecimals(t, 8),
	}}
	o := NewAggregatorOracle(caller, nil)

	for i := 0; i < 2; i++ {
		sample, err := o.ReadPrice(context.Background(), feed.Hex())
		if err != nil {
			t.Fatalf("read price: %v", err)
		}
		if sample.Decimals != 8 {
			t.Fatalf("decimals = %d", sample.Decimals)
		}
	}
	if caller.calls != 3 {
		t.Fatalf("expected decimals read once, calls = %d", caller.calls)
	}
}

func TestAggregatorOracleMissingDecimalsIsUnavailable(t *testing.T) {
	feed := common.HexToAddress("0x4444444444444444444444444444444444444444")
	caller := &fakeCaller{t: t, feed: feed, response: map[string][]byte{
		"latestRoundData": packRound(t, 9, big.NewInt(100_000_000), 1700000000, 9),
	}}
	_, err := NewAggregatorOracle(caller, nil).ReadPrice(context.Background(), feed.Hex())
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("expected oracle unavailable, got %v", err)
	}
}
