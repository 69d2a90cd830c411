// Copyright (c) 2023 BVK Chaitanya

package httputil

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// ProbeTimeout bounds the wait for a newly started listener to answer its
	// probe request.
	ProbeTimeout time.Duration

	// ProbeInterval is the delay between probe attempts.
	ProbeInterval time.Duration

	// ReadHeaderTimeout is passed to every http.Server started.
	ReadHeaderTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.ProbeTimeout == 0 {
		v.ProbeTimeout = 10 * time.Second
	}
	if v.ProbeInterval == 0 {
		v.ProbeInterval = 100 * time.Millisecond
	}
	if v.ReadHeaderTimeout == 0 {
		v.ReadHeaderTimeout = 5 * time.Second
	}
}

func (v *Options) Check() error {
	if v.ProbeTimeout < 0 || v.ProbeInterval < 0 || v.ReadHeaderTimeout < 0 {
		return fmt.Errorf("http server timeouts cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
