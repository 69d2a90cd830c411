// Copyright (c) 2023 BVK Chaitanya

package paper

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

type Options struct {
	// MakerFeeRate and TakerFeeRate are charged on the quote value of every
	// fill. Negative rates are rebates.
	MakerFeeRate decimal.Decimal
	TakerFeeRate decimal.Decimal

	// InitialBalances seed the account when the database holds no balances.
	InitialBalances map[string]decimal.Decimal
}

func (v *Options) Check() error {
	for asset, amount := range v.InitialBalances {
		if len(asset) == 0 || asset != strings.ToLower(asset) {
			return fmt.Errorf("asset name %q must be non-empty and lower case: %w", asset, os.ErrInvalid)
		}
		if amount.IsNegative() {
			return fmt.Errorf("initial balance for %s cannot be negative: %w", asset, os.ErrInvalid)
		}
	}
	return nil
}
