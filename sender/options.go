// Copyright (c) 2023 BVK Chaitanya

package sender

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// Retries is the maximum number of placement attempts for one order.
	Retries int

	// RetryBackoff is the delay before the second attempt, doubling for every
	// following attempt up to MaxRetryBackoff. Zero retries immediately.
	RetryBackoff time.Duration

	MaxRetryBackoff time.Duration
}

func (v *Options) setDefaults() {
	if v.Retries == 0 {
		v.Retries = 5
	}
	if v.MaxRetryBackoff == 0 {
		v.MaxRetryBackoff = time.Minute
	}
}

func (v *Options) Check() error {
	if v.Retries < 1 {
		return fmt.Errorf("retries must be at least one: %w", os.ErrInvalid)
	}
	if v.RetryBackoff < 0 || v.MaxRetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
