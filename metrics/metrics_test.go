// Copyright (c) 2023 BVK Chaitanya

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(orderAttempts.WithLabelValues("BUY", "error"))
	OrderAttempt("BUY", errors.New("timeout"))
	OrderAttempt("BUY", errors.New("timeout"))
	if v := testutil.ToFloat64(orderAttempts.WithLabelValues("BUY", "error")); v != before+2 {
		t.Fatalf("want %v, got %v", before+2, v)
	}

	SetAvailableSlots(3)
	if v := testutil.ToFloat64(availableSlots); v != 3 {
		t.Fatalf("want 3, got %v", v)
	}

	SetTotalProfit(decimal.RequireFromString("41.25"))
	if v := testutil.ToFloat64(totalProfit); v != 41.25 {
		t.Fatalf("want 41.25, got %v", v)
	}
}
