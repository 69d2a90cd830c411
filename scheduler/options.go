// Copyright (c) 2023 BVK Chaitanya

package scheduler

import (
	"fmt"
	"os"
	"time"

	"github.com/bvk/pairbot/exchange"
	"github.com/shopspring/decimal"
)

type Options struct {
	Pair string

	// TradeAmount is the total base amount split evenly across MaxLines.
	TradeAmount decimal.Decimal

	// Range is the fractional distance of order prices from the quote.
	Range decimal.Decimal

	MaxLines int

	// RunTime bounds the admission of new lines. Admitted lines always run to
	// completion.
	RunTime time.Duration

	CheckInterval time.Duration
	OrderInterval time.Duration

	OrderRetry   int
	RetryBackoff time.Duration

	MakerFeeRate decimal.Decimal
	TakerFeeRate decimal.Decimal

	TradeHistoryCount int

	// RunID seeds the client order ids. A random id is used when empty.
	RunID string
}

func (v *Options) setDefaults() {
	if v.MaxLines == 0 {
		v.MaxLines = 4
	}
	if v.RunTime == 0 {
		v.RunTime = time.Hour
	}
	if v.CheckInterval == 0 {
		v.CheckInterval = 3 * time.Second
	}
	if v.OrderInterval == 0 {
		v.OrderInterval = 30 * time.Second
	}
	if v.OrderRetry == 0 {
		v.OrderRetry = 5
	}
	if v.TradeHistoryCount == 0 {
		v.TradeHistoryCount = 20
	}
}

func (v *Options) Check() error {
	if _, _, err := exchange.SplitPair(v.Pair); err != nil {
		return err
	}
	if !v.TradeAmount.IsPositive() {
		return fmt.Errorf("trade amount %s must be positive: %w", v.TradeAmount, os.ErrInvalid)
	}
	if v.Range.IsNegative() || v.Range.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("range %s must be in [0, 1): %w", v.Range, os.ErrInvalid)
	}
	if v.MaxLines < 1 {
		return fmt.Errorf("max lines must be at least one: %w", os.ErrInvalid)
	}
	if v.RunTime < 0 || v.CheckInterval < 0 || v.OrderInterval < 0 {
		return fmt.Errorf("durations cannot be negative: %w", os.ErrInvalid)
	}
	if v.OrderRetry < 1 {
		return fmt.Errorf("order retry must be at least one: %w", os.ErrInvalid)
	}
	if v.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative: %w", os.ErrInvalid)
	}
	if v.TradeHistoryCount < 1 {
		return fmt.Errorf("trade history count must be positive: %w", os.ErrInvalid)
	}
	return nil
}

// LineAmount returns the base amount traded by each line.
func (v *Options) LineAmount() decimal.Decimal {
	return v.TradeAmount.Div(decimal.NewFromInt(int64(v.MaxLines)))
}
