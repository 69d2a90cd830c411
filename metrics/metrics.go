// Copyright (c) 2023 BVK Chaitanya

// Package metrics holds the Prometheus collectors updated by the order lines
// and the scheduler. Collectors are registered with the default registry and
// served by the status server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	orderAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairbot_order_attempts_total",
			Help: "Order placement attempts by side and result (ok|error).",
		},
		[]string{"side", "result"},
	)

	ordersNotPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairbot_orders_not_placed_total",
			Help: "Orders abandoned after exhausting all placement attempts.",
		},
		[]string{"side"},
	)

	feeUpgrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairbot_taker_fee_upgrades_total",
			Help: "Order legs reconciled as taker executions.",
		},
		[]string{"side"},
	)

	lines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairbot_lines_total",
			Help: "Order lines by final outcome (accounted|interrupted|failed).",
		},
		[]string{"outcome"},
	)

	availableSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pairbot_available_slots",
			Help: "Number of order line slots currently free.",
		},
	)

	totalProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pairbot_total_profit",
			Help: "Cumulative realized profit in quote currency.",
		},
	)
)

func init() {
	prometheus.MustRegister(orderAttempts, ordersNotPlaced, feeUpgrades, lines, availableSlots, totalProfit)
}

func OrderAttempt(side string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	orderAttempts.WithLabelValues(side, result).Inc()
}

func OrderNotPlaced(side string) {
	ordersNotPlaced.WithLabelValues(side).Inc()
}

func TakerFeeUpgrade(side string) {
	feeUpgrades.WithLabelValues(side).Inc()
}

func LineFinished(outcome string) {
	lines.WithLabelValues(outcome).Inc()
}

func SetAvailableSlots(n int) {
	availableSlots.Set(float64(n))
}

func SetTotalProfit(v decimal.Decimal) {
	totalProfit.Set(v.InexactFloat64())
}
