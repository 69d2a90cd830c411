// Copyright (c) 2023 BVK Chaitanya

package scheduler

import (
	"fmt"
	"os"
	"sync"
)

// Slots counts the free order line slots. Available is always between zero
// and the maximum.
type Slots struct {
	mu sync.Mutex

	max       int
	available int
}

func NewSlots(max int) *Slots {
	return &Slots{max: max, available: max}
}

// TryAcquire takes one slot if any is free.
func (v *Slots) TryAcquire() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.available <= 0 {
		return false
	}
	v.available--
	return true
}

// Release returns one slot. Releasing more slots than were acquired is an
// error and leaves the count unchanged.
func (v *Slots) Release() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.available >= v.max {
		return fmt.Errorf("all %d slots are already free: %w", v.max, os.ErrInvalid)
	}
	v.available++
	return nil
}

func (v *Slots) Available() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.available
}

func (v *Slots) Max() int {
	return v.max
}
