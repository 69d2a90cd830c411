// Copyright (c) 2023 BVK Chaitanya

package paper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/bvk/pairbot/exchange"
	"github.com/shopspring/decimal"
)

// PriceSource supplies the quotes against which paper orders are matched.
type PriceSource interface {
	GetTicker(ctx context.Context, pair string) (*exchange.Ticker, error)
}

// StaticPrices is a PriceSource with manually set quotes.
type StaticPrices struct {
	mu      sync.Mutex
	tickers map[string]*exchange.Ticker
}

func (v *StaticPrices) Set(pair string, ticker *exchange.Ticker) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.tickers == nil {
		v.tickers = make(map[string]*exchange.Ticker)
	}
	t := *ticker
	v.tickers[pair] = &t
}

func (v *StaticPrices) GetTicker(ctx context.Context, pair string) (*exchange.Ticker, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	t, ok := v.tickers[pair]
	if !ok {
		return nil, fmt.Errorf("no quote for pair %q: %w", pair, os.ErrNotExist)
	}
	c := *t
	return &c, nil
}

// RandomWalk is a PriceSource whose mid price moves by a random fraction of
// up to Step on every quote, keeping a constant relative Spread.
type RandomWalk struct {
	mu sync.Mutex

	mid    decimal.Decimal
	step   float64
	spread decimal.Decimal
	rng    *rand.Rand
}

func NewRandomWalk(start decimal.Decimal, step, spread float64, seed uint64) *RandomWalk {
	return &RandomWalk{
		mid:    start,
		step:   step,
		spread: decimal.NewFromFloat(spread),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (v *RandomWalk) GetTicker(ctx context.Context, pair string) (*exchange.Ticker, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	move := decimal.NewFromFloat((v.rng.Float64()*2 - 1) * v.step)
	v.mid = v.mid.Mul(decimal.NewFromInt(1).Add(move)).Round(8)

	half := v.mid.Mul(v.spread).Div(decimal.NewFromInt(2))
	ticker := &exchange.Ticker{
		Buy:  v.mid.Sub(half),
		Sell: v.mid.Add(half),
		Last: v.mid,
	}
	return ticker, nil
}
