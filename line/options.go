// Copyright (c) 2023 BVK Chaitanya

package line

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Options struct {
	Pair string

	// Amount is the base asset quantity for both the buy and the sell order.
	Amount decimal.Decimal

	// Range is the fractional distance of the order prices from the quote.
	Range decimal.Decimal

	MakerFeeRate decimal.Decimal
	TakerFeeRate decimal.Decimal

	CheckInterval time.Duration

	TradeHistoryCount int
}

func (v *Options) setDefaults() {
	if v.CheckInterval == 0 {
		v.CheckInterval = 3 * time.Second
	}
	if v.TradeHistoryCount == 0 {
		v.TradeHistoryCount = 20
	}
}

func (v *Options) Check() error {
	if len(v.Pair) == 0 {
		return fmt.Errorf("pair cannot be empty: %w", os.ErrInvalid)
	}
	if !v.Amount.IsPositive() {
		return fmt.Errorf("amount %s must be positive: %w", v.Amount, os.ErrInvalid)
	}
	if v.Range.IsNegative() || v.Range.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("range %s must be in [0, 1): %w", v.Range, os.ErrInvalid)
	}
	if v.CheckInterval < 0 {
		return fmt.Errorf("check interval cannot be negative: %w", os.ErrInvalid)
	}
	if v.TradeHistoryCount < 1 {
		return fmt.Errorf("trade history count must be positive: %w", os.ErrInvalid)
	}
	return nil
}
