// Copyright (c) 2023 BVK Chaitanya

package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bvk/pairbot/ctxutil"
	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/metrics"
)

// ErrNotPlaced is reported when an order could not be placed after all
// attempts. Callers treat it as a non-fatal failure of one order leg.
var ErrNotPlaced = errors.New("could not place order")

// Sender places orders through a gateway with a bounded number of attempts.
type Sender struct {
	gw exchange.Gateway

	opts Options
}

func New(gw exchange.Gateway, opts *Options) (*Sender, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, fmt.Errorf("invalid sender options: %w", err)
	}
	s := &Sender{
		gw:   gw,
		opts: *opts,
	}
	return s, nil
}

// Send places the order, retrying failed attempts up to the configured limit.
// The same request, including its client order id, is presented to the venue
// on every attempt. Returns a nil handle and an error wrapping ErrNotPlaced
// when every attempt failed.
func (s *Sender) Send(ctx context.Context, req *exchange.OrderRequest) (*exchange.OrderHandle, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid order request %s: %w", req, err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		if attempt > 1 {
			delay := ctxutil.Backoff(s.opts.RetryBackoff, s.opts.MaxRetryBackoff, attempt-1)
			if err := ctxutil.Sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w after %d attempts: %w", ErrNotPlaced, attempt-1, err)
			}
		}

		handle, err := s.gw.PlaceOrder(ctx, req)
		if err == nil && (handle == nil || handle.OrderID == "") {
			err = fmt.Errorf("venue returned an empty order id")
		}
		metrics.OrderAttempt(req.Side.String(), err)
		if err == nil {
			slog.Info("created new limit order", "side", req.Side, "price", req.Price, "amount", req.Amount, "order-id", handle.OrderID, "attempt", attempt)
			return handle, nil
		}

		lastErr = err
		slog.Warn("could not create limit order (retrying)", "side", req.Side, "price", req.Price, "attempt", attempt, "retries", s.opts.Retries, "err", err)
		if ctx.Err() != nil {
			break
		}
	}

	metrics.OrderNotPlaced(req.Side.String())
	return nil, fmt.Errorf("%w %s: %w", ErrNotPlaced, req, lastErr)
}
