// Copyright (c) 2023 BVK Chaitanya

package paper

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	stateKey       = "/paper/state"
	openOrdersDir  = "/paper/open"
	ordersDir      = "/paper/orders"
	tradesDir      = "/paper/trades"
	balancesDir    = "/paper/balances"
	clientOrderDir = "/paper/clientids"
)

type gobState struct {
	NextTradeSeq uint64
}

type gobOrder struct {
	OrderID       string
	ClientOrderID uuid.UUID

	Pair   string
	Side   string
	Price  decimal.Decimal
	Amount decimal.Decimal

	CreatedAt time.Time
	FilledAt  time.Time
}

type gobTrade struct {
	TradeID string
	OrderID string

	Pair   string
	Side   string
	Price  decimal.Decimal
	Amount decimal.Decimal
	Fee    decimal.Decimal

	MakerTaker string
	ExecutedAt time.Time
}

type gobBalance struct {
	Asset  string
	Onhand decimal.Decimal
}

type gobClientOrder struct {
	OrderID string
}
