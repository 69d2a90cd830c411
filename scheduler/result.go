// Copyright (c) 2023 BVK Chaitanya

package scheduler

import (
	"fmt"
	"time"

	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/line"
	"github.com/shopspring/decimal"
)

// Result is published once for every accounted order line.
type Result struct {
	Index uint64 `json:"index"`
	Pair  string `json:"pair"`

	Amount    decimal.Decimal `json:"amount"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`

	BuyOrderID  exchange.OrderID `json:"buy_order_id,omitempty"`
	SellOrderID exchange.OrderID `json:"sell_order_id,omitempty"`

	BuyFeeRate  decimal.Decimal `json:"buy_fee_rate"`
	SellFeeRate decimal.Decimal `json:"sell_fee_rate"`

	Profit      decimal.Decimal `json:"profit"`
	TotalProfit decimal.Decimal `json:"total_profit"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func newResult(s *line.Status) *Result {
	r := &Result{
		Index:       s.Index,
		Pair:        s.Pair,
		Amount:      s.Amount,
		BuyPrice:    s.BuyPrice,
		SellPrice:   s.SellPrice,
		BuyOrderID:  s.BuyOrderID,
		SellOrderID: s.SellOrderID,
		BuyFeeRate:  s.BuyFeeRate,
		SellFeeRate: s.SellFeeRate,
		TotalProfit: s.TotalProfit,
		StartedAt:   s.StartedAt,
		FinishedAt:  time.Now(),
	}
	if s.Profit != nil {
		r.Profit = *s.Profit
	}
	return r
}

func (r *Result) String() string {
	return fmt.Sprintf("line %d: profit %s total %s", r.Index, r.Profit.StringFixed(4), r.TotalProfit.StringFixed(4))
}

// Summary describes a finished run.
type Summary struct {
	Lines       uint64 `json:"lines"`
	Completed   uint64 `json:"completed"`
	Interrupted uint64 `json:"interrupted"`
	Failed      uint64 `json:"failed"`

	TotalProfit decimal.Decimal `json:"total_profit"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Summary) String() string {
	return fmt.Sprintf("lines %d (completed %d, interrupted %d, failed %d) total profit %s",
		s.Lines, s.Completed, s.Interrupted, s.Failed, s.TotalProfit.StringFixed(4))
}

// Status is a snapshot of the scheduler and its active lines.
type Status struct {
	Pair string `json:"pair"`

	MaxLines       int `json:"max_lines"`
	AvailableSlots int `json:"available_slots"`

	Admitted  uint64 `json:"admitted"`
	Completed uint64 `json:"completed"`

	TotalProfit decimal.Decimal `json:"total_profit"`

	Lines []*line.Status `json:"lines"`
}
