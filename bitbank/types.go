// Copyright (c) 2023 BVK Chaitanya

package bitbank

import (
	"github.com/shopspring/decimal"
)

type Response[T any] struct {
	Success int `json:"success"`
	Data    T   `json:"data"`
}

type ErrorData struct {
	Code int `json:"code"`
}

type TickerData struct {
	// Sell is the best ask and Buy is the best bid.
	Sell decimal.Decimal `json:"sell"`
	Buy  decimal.Decimal `json:"buy"`
	High decimal.Decimal `json:"high"`
	Low  decimal.Decimal `json:"low"`
	Open decimal.Decimal `json:"open"`
	Last decimal.Decimal `json:"last"`
	Vol  decimal.Decimal `json:"vol"`

	Timestamp int64 `json:"timestamp"`
}
