// Copyright (c) 2023 BVK Chaitanya

package ledger

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger accumulates realized profit across concurrently completing order
// lines. Zero value is an empty ledger.
type Ledger struct {
	mu sync.Mutex

	total decimal.Decimal
	count int
}

// Add records one line's profit and returns the new cumulative total.
func (v *Ledger) Add(profit decimal.Decimal) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.total = v.total.Add(profit)
	v.count++
	return v.total
}

func (v *Ledger) Total() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.total
}

// Count returns the number of profits recorded.
func (v *Ledger) Count() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.count
}
