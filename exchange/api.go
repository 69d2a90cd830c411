// Copyright (c) 2023 BVK Chaitanya

package exchange

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNoFund = errors.New("insufficient funds")

type OrderID string

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

type OrderType string

const (
	LIMIT  OrderType = "LIMIT"
	MARKET OrderType = "MARKET"
)

// Liquidity classification of an executed trade.
const (
	Maker = "maker"
	Taker = "taker"
)

type Ticker struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
	Last decimal.Decimal
}

type Balance struct {
	Asset        string
	OnhandAmount decimal.Decimal
}

type OrderRequest struct {
	// ClientOrderID is reused across retries of the same logical order so that
	// venues supporting client-id deduplication do not create duplicates.
	ClientOrderID uuid.UUID

	Pair  string
	Side  Side
	Type  OrderType
	Price decimal.Decimal

	Amount decimal.Decimal
}

// OrderHandle identifies an order accepted by the venue.
type OrderHandle struct {
	OrderID OrderID
}

type ActiveOrder struct {
	OrderID OrderID
	Pair    string
	Side    Side
	Price   decimal.Decimal

	RemainingAmount decimal.Decimal
}

type Trade struct {
	TradeID string
	OrderID OrderID
	Pair    string
	Side    Side
	Price   decimal.Decimal
	Amount  decimal.Decimal

	// MakerTaker is either Maker or Taker.
	MakerTaker string
}

// Gateway is the set of venue operations used by the trading lines. Gateway
// implementations must be safe for concurrent use.
type Gateway interface {
	GetTicker(ctx context.Context, pair string) (*Ticker, error)
	GetBalances(ctx context.Context) ([]*Balance, error)

	PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderHandle, error)

	GetActiveOrders(ctx context.Context, pair string) ([]*ActiveOrder, error)

	// GetTradeHistory returns up to count most recent trades for the pair,
	// newest first.
	GetTradeHistory(ctx context.Context, pair string, count int) ([]*Trade, error)
}
