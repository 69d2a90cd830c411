// Copyright (c) 2023 BVK Chaitanya

package line

import (
	"github.com/bvk/pairbot/exchange"
	"github.com/shopspring/decimal"
)

// ComputeProfit returns the realized profit of one buy and one sell of the
// same amount, net of fees. Negative fee rates are rebates.
func ComputeProfit(buyPrice, sellPrice, amount, buyFeeRate, sellFeeRate decimal.Decimal) decimal.Decimal {
	deal := sellPrice.Sub(buyPrice).Mul(amount)
	fee := sellPrice.Mul(sellFeeRate).Add(buyPrice.Mul(buyFeeRate)).Mul(amount)
	return deal.Sub(fee)
}

// FeeRates determines the fee rate for each leg from the trade history. The
// last entry matching an order id decides that leg; a taker execution
// selects the taker rate and anything else, including no matching entry,
// keeps the maker rate. Empty order ids never match.
func FeeRates(trades []*exchange.Trade, buyID, sellID exchange.OrderID, maker, taker decimal.Decimal) (buyRate, sellRate decimal.Decimal) {
	var buyTrade, sellTrade *exchange.Trade
	for _, t := range trades {
		if t == nil || t.OrderID == "" {
			continue
		}
		if t.OrderID == buyID {
			buyTrade = t
		}
		if t.OrderID == sellID {
			sellTrade = t
		}
	}

	buyRate, sellRate = maker, maker
	if buyTrade != nil && buyTrade.MakerTaker == exchange.Taker {
		buyRate = taker
	}
	if sellTrade != nil && sellTrade.MakerTaker == exchange.Taker {
		sellRate = taker
	}
	return buyRate, sellRate
}
