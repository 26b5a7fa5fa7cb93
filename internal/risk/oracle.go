package risk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"liquidityflow/internal/domain"
)

// PriceSample is a read-only observation from an external price feed.
// Confidence is an absolute band around Price in the same units; zero means
// the feed does not report one. Decimals is the feed's fixed-point precision,
// zero when unknown.
type PriceSample struct {
	Price       uint64    `json:"price"`
	Confidence  uint64    `json:"confidence"`
	Decimals    uint8     `json:"decimals,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source,omitempty"`
}

// Oracle reads the latest sample for a feed handle. Implementations fail with
// domain.ErrOracleUnavailable when no sample can be produced.
type Oracle interface {
	ReadPrice(ctx context.Context, feed string) (PriceSample, error)
}

// StaticOracle serves fixed samples. It backs tests and manual overrides.
type StaticOracle struct {
	mu      sync.RWMutex
	samples map[string]PriceSample
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{samples: make(map[string]PriceSample)}
}

// Set stores sample under feed.
func (o *StaticOracle) Set(feed string, sample PriceSample) {
	o.mu.Lock()
	o.samples[feedKey(feed)] = sample
	o.mu.Unlock()
}

func (o *StaticOracle) ReadPrice(ctx context.Context, feed string) (PriceSample, error) {
	if err := ctx.Err(); err != nil {
		return PriceSample{}, err
	}
	o.mu.RLock()
	sample, ok := o.samples[feedKey(feed)]
	o.mu.RUnlock()
	if !ok {
		return PriceSample{}, fmt.Errorf("%w: no sample for feed %q", domain.ErrOracleUnavailable, feed)
	}
	if sample.Source == "" {
		sample.Source = "static"
	}
	return sample, nil
}

func feedKey(feed string) string {
	return strings.ToLower(strings.TrimSpace(feed))
}
