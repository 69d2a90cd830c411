// Copyright (c) 2023 BVK Chaitanya

package line

import (
	"time"

	"github.com/bvk/pairbot/exchange"
	"github.com/shopspring/decimal"
)

// Status is a point-in-time copy of a line's observable fields.
type Status struct {
	Index uint64 `json:"index"`
	State string `json:"state"`
	Pair  string `json:"pair"`

	Amount    decimal.Decimal `json:"amount"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`

	BuyOrderID  exchange.OrderID `json:"buy_order_id,omitempty"`
	SellOrderID exchange.OrderID `json:"sell_order_id,omitempty"`

	BuyFeeRate  decimal.Decimal `json:"buy_fee_rate"`
	SellFeeRate decimal.Decimal `json:"sell_fee_rate"`

	// Profit is nil until the line is accounted.
	Profit      *decimal.Decimal `json:"profit,omitempty"`
	TotalProfit decimal.Decimal  `json:"total_profit"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

func (v *Line) Status() *Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := &Status{
		Index:       v.index,
		State:       v.state.String(),
		Pair:        v.opts.Pair,
		Amount:      v.opts.Amount,
		BuyPrice:    v.buyPrice,
		SellPrice:   v.sellPrice,
		BuyOrderID:  v.buyOrderID,
		SellOrderID: v.sellOrderID,
		BuyFeeRate:  v.buyFeeRate,
		SellFeeRate: v.sellFeeRate,
		TotalProfit: v.totalProfit,
		StartedAt:   v.startedAt,
		FinishedAt:  v.finishedAt,
	}
	if v.profit != nil {
		p := *v.profit
		s.Profit = &p
	}
	return s
}
