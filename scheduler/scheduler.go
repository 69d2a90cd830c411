// Copyright (c) 2023 BVK Chaitanya

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bvk/pairbot/ctxutil"
	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/idgen"
	"github.com/bvk/pairbot/ledger"
	"github.com/bvk/pairbot/line"
	"github.com/bvk/pairbot/metrics"
	"github.com/bvk/pairbot/sender"
	"github.com/bvk/pairbot/syncmap"
	"github.com/google/uuid"
	"github.com/visvasity/topic"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Scheduler admits order lines while a slot is free and the run time has not
// elapsed, and collects their profits into a shared ledger.
type Scheduler struct {
	cg ctxutil.CloseGroup

	gw exchange.Gateway

	opts Options

	lineOpts line.Options

	sender *sender.Sender

	idgen *idgen.Generator

	slots *Slots

	ledger ledger.Ledger

	orderCounter atomic.Uint64

	completed   atomic.Uint64
	interrupted atomic.Uint64
	failed      atomic.Uint64

	running atomic.Bool

	activeLines syncmap.Map[uint64, *line.Line]

	results *topic.Topic[*Result]
}

func New(gw exchange.Gateway, opts *Options) (*Scheduler, error) {
	if opts == nil {
		return nil, fmt.Errorf("scheduler options are required: %w", os.ErrInvalid)
	}
	o := *opts
	o.setDefaults()
	if err := o.Check(); err != nil {
		return nil, fmt.Errorf("invalid scheduler options: %w", err)
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}

	snd, err := sender.New(gw, &sender.Options{
		Retries:      o.OrderRetry,
		RetryBackoff: o.RetryBackoff,
	})
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		gw:     gw,
		opts:   o,
		sender: snd,
		idgen:  idgen.New(o.RunID),
		slots:  NewSlots(o.MaxLines),
		lineOpts: line.Options{
			Pair:              o.Pair,
			Amount:            o.LineAmount(),
			Range:             o.Range,
			MakerFeeRate:      o.MakerFeeRate,
			TakerFeeRate:      o.TakerFeeRate,
			CheckInterval:     o.CheckInterval,
			TradeHistoryCount: o.TradeHistoryCount,
		},
		results: topic.New[*Result](),
	}
	metrics.SetAvailableSlots(s.slots.Available())
	return s, nil
}

// Close cancels every outstanding line and closes the results topic.
func (s *Scheduler) Close() {
	s.cg.Close()
	s.results.Close()
}

// Results returns a receiver for the results of accounted lines.
func (s *Scheduler) Results() (*topic.Receiver[*Result], error) {
	return topic.Subscribe(s.results, 0, false)
}

// CheckBalance verifies that the account holds more than the trade amount of
// the base asset and more than its value in the quote asset at the last
// traded price.
func (s *Scheduler) CheckBalance(ctx context.Context) error {
	base, quote, err := exchange.SplitPair(s.opts.Pair)
	if err != nil {
		return err
	}
	balances, err := s.gw.GetBalances(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch balances: %w", err)
	}
	ticker, err := s.gw.GetTicker(ctx, s.opts.Pair)
	if err != nil {
		return fmt.Errorf("could not fetch ticker for %s: %w", s.opts.Pair, err)
	}

	baseOnhand := exchange.FindBalance(balances, base)
	quoteOnhand := exchange.FindBalance(balances, quote)
	quoteNeeded := s.opts.TradeAmount.Mul(ticker.Last)

	if !baseOnhand.GreaterThan(s.opts.TradeAmount) {
		return fmt.Errorf("%s on-hand %s must be greater than %s: %w", base, baseOnhand, s.opts.TradeAmount, ErrInsufficientBalance)
	}
	if !quoteOnhand.GreaterThan(quoteNeeded) {
		return fmt.Errorf("%s on-hand %s must be greater than %s: %w", quote, quoteOnhand, quoteNeeded, ErrInsufficientBalance)
	}
	return nil
}

// Run admits order lines until the run time has elapsed or the context is
// canceled, then waits for every admitted line to finish. Returns
// ErrInsufficientBalance without placing any order if the balance check
// fails.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("scheduler is already running: %w", os.ErrInvalid)
	}
	if err := s.CheckBalance(ctx); err != nil {
		return nil, err
	}

	summary := &Summary{StartedAt: time.Now()}
	slog.Info("starting order lines", "pair", s.opts.Pair, "max-lines", s.opts.MaxLines, "line-amount", s.lineOpts.Amount, "run-time", s.opts.RunTime, "run-id", s.opts.RunID)

	var admitErr error
	if err := s.admit(ctx, summary.StartedAt); err != nil {
		slog.Warn("stopped admitting new order lines", "err", err)
		if ctx.Err() == nil {
			admitErr = err
		}
	}
	s.cg.Wait()

	summary.FinishedAt = time.Now()
	summary.Lines = s.orderCounter.Load()
	summary.Completed = s.completed.Load()
	summary.Interrupted = s.interrupted.Load()
	summary.Failed = s.failed.Load()
	summary.TotalProfit = s.ledger.Total()
	slog.Info("all order lines have finished", "summary", summary)
	if admitErr != nil {
		return summary, admitErr
	}
	return summary, nil
}

func (s *Scheduler) admit(ctx context.Context, start time.Time) error {
	for {
		for !s.slots.TryAcquire() {
			if err := ctxutil.Sleep(ctx, s.opts.CheckInterval); err != nil {
				return err
			}
		}
		metrics.SetAvailableSlots(s.slots.Available())

		index := s.orderCounter.Add(1)
		l, err := line.New(index, s.gw, s.sender, &s.ledger, s.idgen, &s.lineOpts)
		if err != nil {
			s.failed.Add(1)
			metrics.LineFinished("failed")
			s.releaseSlot()
			return fmt.Errorf("could not create order line %d: %w", index, err)
		}
		s.activeLines.Store(index, l)

		if err := s.place(ctx, l); err != nil {
			slog.Error("could not place order line", "line", index, "err", err)
			s.finish(l)
		} else {
			s.cg.Go(ctx, func(ctx context.Context) {
				s.complete(ctx, l)
			})
		}

		if time.Since(start) > s.opts.RunTime {
			slog.Info("run time has elapsed; no more order lines will be admitted", "run-time", s.opts.RunTime)
			return nil
		}
		if err := ctxutil.Sleep(ctx, s.opts.OrderInterval); err != nil {
			return err
		}
	}
}

// place runs the line's placement on the admission goroutine. A panic is
// recovered and fails the line.
func (s *Scheduler) place(ctx context.Context, l *line.Line) (status error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("order line panicked during placement", "line", l.Index(), "panic", r)
			slog.Error(string(debug.Stack()))
			l.Fail()
			status = fmt.Errorf("line %d: placement panicked: %v", l.Index(), r)
		}
	}()

	return l.Place(ctx)
}

func (s *Scheduler) complete(ctx context.Context, l *line.Line) {
	defer s.finish(l)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("order line panicked", "line", l.Index(), "panic", r)
			slog.Error(string(debug.Stack()))
			l.Interrupt()
		}
	}()

	if err := l.Complete(ctx); err != nil {
		slog.Warn("order line did not complete", "line", l.Index(), "err", err)
	}
}

// finish reports the line's outcome and releases its slot.
func (s *Scheduler) finish(l *line.Line) {
	defer s.activeLines.Delete(l.Index())
	defer s.releaseSlot()

	switch l.State() {
	case line.Accounted:
		result := newResult(l.Status())
		s.results.Send(result)
		if err := l.Release(); err != nil {
			slog.Error("could not release order line (unexpected)", "line", l.Index(), "err", err)
		}
		s.completed.Add(1)
		metrics.LineFinished("accounted")
		metrics.SetTotalProfit(s.ledger.Total())
		slog.Info("order line completed", "line", result.Index, "profit", result.Profit, "total-profit", result.TotalProfit)

	case line.Failed:
		s.failed.Add(1)
		metrics.LineFinished("failed")

	default:
		l.Interrupt()
		s.interrupted.Add(1)
		metrics.LineFinished("interrupted")
		slog.Warn("order line was interrupted; its orders may remain at the venue", "line", l.Index(), "status", l.Status())
	}
}

func (s *Scheduler) releaseSlot() {
	if err := s.slots.Release(); err != nil {
		slog.Error("could not release order line slot (unexpected)", "err", err)
	}
	metrics.SetAvailableSlots(s.slots.Available())
}

func (s *Scheduler) Status() *Status {
	status := &Status{
		Pair:           s.opts.Pair,
		MaxLines:       s.slots.Max(),
		AvailableSlots: s.slots.Available(),
		Admitted:       s.orderCounter.Load(),
		Completed:      s.completed.Load(),
		TotalProfit:    s.ledger.Total(),
	}
	for _, l := range s.activeLines.Values() {
		status.Lines = append(status.Lines, l.Status())
	}
	slices.SortFunc(status.Lines, func(a, b *line.Status) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		}
		return 0
	})
	return status
}
