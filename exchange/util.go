// Copyright (c) 2023 BVK Chaitanya

package exchange

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// SplitPair returns the base and quote assets for a "base_quote" pair name.
func SplitPair(pair string) (base, quote string, err error) {
	base, quote, ok := strings.Cut(strings.ToLower(pair), "_")
	if !ok || len(base) == 0 || len(quote) == 0 || strings.Contains(quote, "_") {
		return "", "", fmt.Errorf("pair %q is not in base_quote form: %w", pair, os.ErrInvalid)
	}
	return base, quote, nil
}

func ParseSide(s string) (Side, error) {
	switch v := Side(strings.ToUpper(s)); v {
	case BUY, SELL:
		return v, nil
	}
	return "", fmt.Errorf("side %q is invalid/unsupported: %w", s, os.ErrInvalid)
}

func (s Side) IsValid() bool {
	return s == BUY || s == SELL
}

func (s Side) String() string {
	return string(s)
}

// FindBalance returns the on-hand amount for the asset or zero if the asset is
// not listed.
func FindBalance(balances []*Balance, asset string) decimal.Decimal {
	for _, b := range balances {
		if strings.EqualFold(b.Asset, asset) {
			return b.OnhandAmount
		}
	}
	return decimal.Zero
}

func (v *Ticker) String() string {
	return fmt.Sprintf("{Buy %s Sell %s Last %s}", v.Buy, v.Sell, v.Last)
}

func (v *OrderRequest) String() string {
	return fmt.Sprintf("{ClientID %s Pair %s Side %s Type %s Price %s Amount %s}",
		v.ClientOrderID, v.Pair, v.Side, v.Type, v.Price.String(), v.Amount.String())
}

// Check validates the order request fields.
func (v *OrderRequest) Check() error {
	if len(v.Pair) == 0 {
		return fmt.Errorf("pair cannot be empty: %w", os.ErrInvalid)
	}
	if !v.Side.IsValid() {
		return fmt.Errorf("side %q is invalid: %w", v.Side, os.ErrInvalid)
	}
	if !v.Amount.IsPositive() {
		return fmt.Errorf("amount %s must be positive: %w", v.Amount, os.ErrInvalid)
	}
	if v.Type != MARKET && !v.Price.IsPositive() {
		return fmt.Errorf("price %s must be positive: %w", v.Price, os.ErrInvalid)
	}
	return nil
}
