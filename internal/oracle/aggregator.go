package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/risk"
)

// ContractCaller performs read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// AggregatorOracle reads AggregatorV3-style price feeds. The feed handle is
// the aggregator contract address.
type AggregatorOracle struct {
	caller ContractCaller
	logger *zap.Logger

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

func NewAggregatorOracle(caller ContractCaller, logger *zap.Logger) *AggregatorOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregatorOracle{caller: caller, logger: logger, decimals: make(map[common.Address]uint8)}
}

// ReadPrice returns the latest round as a sample. Any failure to produce a
// well-formed positive answer is reported as domain.ErrOracleUnavailable.
func (o *AggregatorOracle) ReadPrice(ctx context.Context, feed string) (risk.PriceSample, error) {
	if o.caller == nil {
		return risk.PriceSample{}, fmt.Errorf("%w: contract caller is nil", domain.ErrOracleUnavailable)
	}
	if !common.IsHexAddress(feed) {
		return risk.PriceSample{}, fmt.Errorf("%w: invalid feed address %q", domain.ErrOracleUnavailable, feed)
	}
	addr := common.HexToAddress(feed)

	feedABI, err := AggregatorV3ABI()
	if err != nil {
		return risk.PriceSample{}, fmt.Errorf("parse aggregator abi: %w", err)
	}

	values, err := callMethod(ctx, o.caller, addr, feedABI, "latestRoundData")
	if err != nil {
		return risk.PriceSample{}, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	sample, err := sampleFromRound(values)
	if err != nil {
		return risk.PriceSample{}, fmt.Errorf("%w: feed %s: %v", domain.ErrOracleUnavailable, addr.Hex(), err)
	}
	if sample.Decimals, err = o.Decimals(ctx, feed); err != nil {
		return risk.PriceSample{}, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	sample.Source = "aggregator:" + addr.Hex()

	o.logger.Debug("price sample",
		zap.String("feed", addr.Hex()),
		zap.Uint64("price", sample.Price),
		zap.Uint8("decimals", sample.Decimals),
		zap.Time("published_at", sample.PublishedAt),
	)
	return sample, nil
}

// Decimals returns the feed's answer precision, cached per feed.
func (o *AggregatorOracle) Decimals(ctx context.Context, feed string) (uint8, error) {
	if !common.IsHexAddress(feed) {
		return 0, fmt.Errorf("invalid feed address %q", feed)
	}
	addr := common.HexToAddress(feed)

	o.mu.RLock()
	d, ok := o.decimals[addr]
	o.mu.RUnlock()
	if ok {
		return d, nil
	}

	feedABI, err := AggregatorV3ABI()
	if err != nil {
		return 0, fmt.Errorf("parse aggregator abi: %w", err)
	}
	values, err := callMethod(ctx, o.caller, addr, feedABI, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok = values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals unexpected type %T", values[0])
	}

	o.mu.Lock()
	o.decimals[addr] = d
	o.mu.Unlock()
	return d, nil
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, contractABI abi.ABI, method string) ([]interface{}, error) {
	data, err := contractABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := contractABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func sampleFromRound(values []interface{}) (risk.PriceSample, error) {
	if len(values) != 5 {
		return risk.PriceSample{}, fmt.Errorf("latestRoundData return size %d", len(values))
	}
	ints := make([]*big.Int, 0, len(values))
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok || n == nil {
			return risk.PriceSample{}, fmt.Errorf("latestRoundData field %d unexpected type %T", i, v)
		}
		ints = append(ints, n)
	}
	roundID, answer, updatedAt, answeredInRound := ints[0], ints[1], ints[3], ints[4]

	if answer.Sign() <= 0 {
		return risk.PriceSample{}, fmt.Errorf("non-positive answer %s", answer)
	}
	if !answer.IsUint64() {
		return risk.PriceSample{}, fmt.Errorf("answer %s exceeds 64 bits", answer)
	}
	if answeredInRound.Cmp(roundID) < 0 {
		return risk.PriceSample{}, fmt.Errorf("answer carried over from round %s into %s", answeredInRound, roundID)
	}
	if updatedAt.Sign() <= 0 || !updatedAt.IsInt64() {
		return risk.PriceSample{}, fmt.Errorf("invalid updatedAt %s", updatedAt)
	}

	return risk.PriceSample{
		Price:       answer.Uint64(),
		PublishedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}
