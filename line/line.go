// Copyright (c) 2023 BVK Chaitanya

package line

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bvk/pairbot/ctxutil"
	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/idgen"
	"github.com/bvk/pairbot/ledger"
	"github.com/bvk/pairbot/metrics"
	"github.com/bvk/pairbot/sender"
	"github.com/shopspring/decimal"
)

// Line is one concurrently executing pair of limit orders: a buy below and a
// sell above the current quote. A line is driven through its states by
// Place, Monitor, Reconcile, Account and Release in that order.
type Line struct {
	index uint64

	gw     exchange.Gateway
	sender *sender.Sender
	ledger *ledger.Ledger
	idgen  *idgen.Generator

	opts Options

	mu sync.Mutex

	state State

	buyPrice  decimal.Decimal
	sellPrice decimal.Decimal

	buyOrderID  exchange.OrderID
	sellOrderID exchange.OrderID

	buyFeeRate  decimal.Decimal
	sellFeeRate decimal.Decimal

	profit      *decimal.Decimal
	totalProfit decimal.Decimal

	startedAt  time.Time
	finishedAt time.Time
}

func New(index uint64, gw exchange.Gateway, snd *sender.Sender, ldg *ledger.Ledger, ids *idgen.Generator, opts *Options) (*Line, error) {
	if opts == nil {
		return nil, fmt.Errorf("line options are required: %w", os.ErrInvalid)
	}
	o := *opts
	o.setDefaults()
	if err := o.Check(); err != nil {
		return nil, fmt.Errorf("invalid line options: %w", err)
	}
	v := &Line{
		index:       index,
		gw:          gw,
		sender:      snd,
		ledger:      ldg,
		idgen:       ids,
		opts:        o,
		state:       Created,
		buyFeeRate:  o.MakerFeeRate,
		sellFeeRate: o.MakerFeeRate,
	}
	return v, nil
}

func (v *Line) Index() uint64 {
	return v.index
}

func (v *Line) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.state
}

func (v *Line) transition(from, to State) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != from {
		return fmt.Errorf("line %d: cannot move to %s from %s (want %s): %w", v.index, to, v.state, from, os.ErrInvalid)
	}
	v.state = to
	if to.IsFinal() {
		v.finishedAt = time.Now()
	}
	return nil
}

// Place fetches one quote and sends the buy and the sell order derived from
// it back to back. A failed send leaves that leg's order id empty and does
// not stop the line. Returns an error without placing anything if the quote
// could not be fetched; the line is marked Failed in that case.
func (v *Line) Place(ctx context.Context) error {
	if err := v.transition(Created, Placing); err != nil {
		return err
	}

	v.mu.Lock()
	v.startedAt = time.Now()
	v.mu.Unlock()

	ticker, err := v.gw.GetTicker(ctx, v.opts.Pair)
	if err != nil {
		v.transition(Placing, Failed)
		return fmt.Errorf("line %d: could not fetch ticker for %s: %w", v.index, v.opts.Pair, err)
	}

	one := decimal.NewFromInt(1)
	buyPrice := ticker.Buy.Mul(one.Sub(v.opts.Range))
	sellPrice := ticker.Sell.Mul(one.Add(v.opts.Range))

	buyClientID, sellClientID := v.idgen.LineIDs(v.index)
	buy := &exchange.OrderRequest{
		ClientOrderID: buyClientID,
		Pair:          v.opts.Pair,
		Side:          exchange.BUY,
		Type:          exchange.LIMIT,
		Price:         buyPrice,
		Amount:        v.opts.Amount,
	}
	sell := &exchange.OrderRequest{
		ClientOrderID: sellClientID,
		Pair:          v.opts.Pair,
		Side:          exchange.SELL,
		Type:          exchange.LIMIT,
		Price:         sellPrice,
		Amount:        v.opts.Amount,
	}

	v.mu.Lock()
	v.buyPrice, v.sellPrice = buyPrice, sellPrice
	v.mu.Unlock()

	var buyID, sellID exchange.OrderID
	if h, err := v.sender.Send(ctx, buy); err != nil {
		slog.Error("could not place buy order", "line", v.index, "price", buyPrice, "err", err)
	} else {
		buyID = h.OrderID
	}
	if h, err := v.sender.Send(ctx, sell); err != nil {
		slog.Error("could not place sell order", "line", v.index, "price", sellPrice, "err", err)
	} else {
		sellID = h.OrderID
	}

	v.mu.Lock()
	v.buyOrderID, v.sellOrderID = buyID, sellID
	v.mu.Unlock()

	slog.Info("placed order line", "line", v.index, "ticker", ticker, "buy-price", buyPrice, "sell-price", sellPrice, "buy-order", buyID, "sell-order", sellID)
	return v.transition(Placing, Monitoring)
}

// Monitor polls the venue's active orders until neither of the line's orders
// is listed. Polling errors are logged and retried at the next interval.
func (v *Line) Monitor(ctx context.Context) error {
	v.mu.Lock()
	state, buyID, sellID := v.state, v.buyOrderID, v.sellOrderID
	v.mu.Unlock()

	if state != Monitoring {
		return fmt.Errorf("line %d: cannot monitor in state %s: %w", v.index, state, os.ErrInvalid)
	}

	for {
		active, err := v.gw.GetActiveOrders(ctx, v.opts.Pair)
		if err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			slog.Warn("could not fetch active orders (will retry)", "line", v.index, "err", err)
		} else if !isActive(active, buyID, sellID) {
			break
		}
		if err := ctxutil.Sleep(ctx, v.opts.CheckInterval); err != nil {
			return err
		}
	}
	return v.transition(Monitoring, Reconciling)
}

func isActive(orders []*exchange.ActiveOrder, ids ...exchange.OrderID) bool {
	for _, o := range orders {
		if o == nil || o.OrderID == "" {
			continue
		}
		for _, id := range ids {
			if id != "" && o.OrderID == id {
				return true
			}
		}
	}
	return false
}

// Reconcile determines the fee rate of each leg from the venue's recent trade
// history. Rates are recomputed from the maker rate on every call. History
// errors are retried every check interval until success or cancellation.
func (v *Line) Reconcile(ctx context.Context) error {
	v.mu.Lock()
	state, buyID, sellID := v.state, v.buyOrderID, v.sellOrderID
	v.mu.Unlock()

	if state != Reconciling {
		return fmt.Errorf("line %d: cannot reconcile in state %s: %w", v.index, state, os.ErrInvalid)
	}

	var trades []*exchange.Trade
	for {
		var err error
		trades, err = v.gw.GetTradeHistory(ctx, v.opts.Pair, v.opts.TradeHistoryCount)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		slog.Warn("could not fetch trade history (will retry)", "line", v.index, "err", err)
		if err := ctxutil.Sleep(ctx, v.opts.CheckInterval); err != nil {
			return err
		}
	}

	buyRate, sellRate := FeeRates(trades, buyID, sellID, v.opts.MakerFeeRate, v.opts.TakerFeeRate)
	if !buyRate.Equal(v.opts.MakerFeeRate) {
		slog.Info("buy order was taker", "line", v.index, "order-id", buyID)
		metrics.TakerFeeUpgrade(exchange.BUY.String())
	}
	if !sellRate.Equal(v.opts.MakerFeeRate) {
		slog.Info("sell order was taker", "line", v.index, "order-id", sellID)
		metrics.TakerFeeUpgrade(exchange.SELL.String())
	}
	if (buyID != "" && !hasTrade(trades, buyID)) || (sellID != "" && !hasTrade(trades, sellID)) {
		slog.Debug("order not found in recent trade history; assuming maker", "line", v.index, "buy-order", buyID, "sell-order", sellID)
	}

	v.mu.Lock()
	v.buyFeeRate, v.sellFeeRate = buyRate, sellRate
	v.mu.Unlock()
	return nil
}

func hasTrade(trades []*exchange.Trade, id exchange.OrderID) bool {
	for _, t := range trades {
		if t != nil && id != "" && t.OrderID == id {
			return true
		}
	}
	return false
}

// Account computes the line's profit and adds it to the ledger. A line is
// accounted at most once.
func (v *Line) Account() (profit, total decimal.Decimal, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.profit != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("line %d: already accounted: %w", v.index, os.ErrInvalid)
	}
	if v.state != Reconciling {
		return decimal.Zero, decimal.Zero, fmt.Errorf("line %d: cannot account in state %s: %w", v.index, v.state, os.ErrInvalid)
	}

	profit = ComputeProfit(v.buyPrice, v.sellPrice, v.opts.Amount, v.buyFeeRate, v.sellFeeRate)
	total = v.ledger.Add(profit)

	v.profit = &profit
	v.totalProfit = total
	v.state = Accounted
	return profit, total, nil
}

// Release marks an accounted line as done.
func (v *Line) Release() error {
	return v.transition(Accounted, Released)
}

// Interrupt moves a line that has not reached a final state into the
// Interrupted state. Returns false if the line was already final.
func (v *Line) Interrupt() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.IsFinal() {
		return false
	}
	v.state = Interrupted
	v.finishedAt = time.Now()
	return true
}

// Fail moves a line that has not reached a final state into the Failed
// state. Returns false if the line was already final.
func (v *Line) Fail() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.IsFinal() {
		return false
	}
	v.state = Failed
	v.finishedAt = time.Now()
	return true
}

// Complete drives a placed line through monitoring, reconciliation and
// accounting. The line is marked Interrupted if it could not finish. Callers
// Release the line after reporting its result.
func (v *Line) Complete(ctx context.Context) error {
	if err := v.Monitor(ctx); err != nil {
		v.Interrupt()
		return fmt.Errorf("line %d: monitoring stopped: %w", v.index, err)
	}
	if err := v.Reconcile(ctx); err != nil {
		v.Interrupt()
		return fmt.Errorf("line %d: reconciliation stopped: %w", v.index, err)
	}
	if _, _, err := v.Account(); err != nil {
		v.Interrupt()
		return err
	}
	return nil
}
