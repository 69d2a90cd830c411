// Copyright (c) 2023 BVK Chaitanya

package bitbank

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

var PublicURL = &url.URL{
	Scheme: "https",
	Host:   "public.bitbank.cc",
}

type Options struct {
	// PublicURL is the base url for the public REST api.
	PublicURL string

	HttpClientTimeout time.Duration

	// RequestsPerSecond limits the request rate from this client.
	RequestsPerSecond float64

	// RetryInterval is the delay before retrying requests that failed with a
	// bad gateway or a rate limit status without a Retry-After header.
	RetryInterval time.Duration

	MaxRetries int
}

func (v *Options) setDefaults() {
	if v.PublicURL == "" {
		v.PublicURL = PublicURL.String()
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 10 * time.Second
	}
	if v.RequestsPerSecond == 0 {
		v.RequestsPerSecond = 10
	}
	if v.RetryInterval == 0 {
		v.RetryInterval = time.Second
	}
	if v.MaxRetries == 0 {
		v.MaxRetries = 5
	}
}

func (v *Options) Check() error {
	if _, err := url.Parse(v.PublicURL); err != nil {
		return fmt.Errorf("invalid public url %q: %w", v.PublicURL, os.ErrInvalid)
	}
	if v.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
