// Copyright (c) 2023 BVK Chaitanya

package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Exchange is a simulated venue that keeps its orders, trades and balances in
// a key-value database. Resting limit orders are matched against the quotes
// of a PriceSource whenever the venue is queried: a buy fills once the best
// ask drops to its price and a sell fills once the best bid reaches its
// price. Orders that cross the quote on arrival fill immediately as taker.
type Exchange struct {
	db kv.Database

	prices PriceSource

	opts Options

	mu sync.Mutex
}

var _ exchange.Gateway = &Exchange{}

func New(ctx context.Context, db kv.Database, prices PriceSource, opts *Options) (*Exchange, error) {
	if opts == nil {
		opts = new(Options)
	}
	if err := opts.Check(); err != nil {
		return nil, fmt.Errorf("invalid paper exchange options: %w", err)
	}
	v := &Exchange{
		db:     db,
		prices: prices,
		opts:   *opts,
	}

	seed := func(ctx context.Context, rw kv.ReadWriter) error {
		balances, err := v.balances(ctx, rw)
		if err != nil {
			return err
		}
		if len(balances) != 0 {
			return nil
		}
		for asset, amount := range opts.InitialBalances {
			if err := kvutil.Set(ctx, rw, path.Join(balancesDir, asset), &gobBalance{Asset: asset, Onhand: amount}); err != nil {
				return fmt.Errorf("could not seed balance for %s: %w", asset, err)
			}
		}
		return nil
	}
	if err := kv.WithReadWriter(ctx, db, seed); err != nil {
		return nil, fmt.Errorf("could not initialize paper balances: %w", err)
	}
	return v, nil
}

func (v *Exchange) GetTicker(ctx context.Context, pair string) (*exchange.Ticker, error) {
	return v.prices.GetTicker(ctx, pair)
}

func (v *Exchange) GetBalances(ctx context.Context) (balances []*exchange.Balance, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	err = kv.WithReader(ctx, v.db, func(ctx context.Context, r kv.Reader) error {
		bs, err := v.balances(ctx, r)
		if err != nil {
			return err
		}
		for _, b := range bs {
			balances = append(balances, &exchange.Balance{Asset: b.Asset, OnhandAmount: b.Onhand})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (v *Exchange) balances(ctx context.Context, r kv.Reader) ([]*gobBalance, error) {
	var balances []*gobBalance
	begin, end := kvutil.PathRange(balancesDir)
	collect := func(ctx context.Context, k string, b *gobBalance) error {
		balances = append(balances, b)
		return nil
	}
	if err := kvutil.Ascend(ctx, r, begin, end, collect); err != nil {
		return nil, fmt.Errorf("could not scan balances: %w", err)
	}
	return balances, nil
}

func (v *Exchange) onhand(ctx context.Context, r kv.Reader, asset string) (decimal.Decimal, error) {
	b, err := kvutil.Get[gobBalance](ctx, r, path.Join(balancesDir, asset))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return b.Onhand, nil
}

func (v *Exchange) adjust(ctx context.Context, rw kv.ReadWriter, asset string, delta decimal.Decimal) error {
	onhand, err := v.onhand(ctx, rw, asset)
	if err != nil {
		return err
	}
	b := &gobBalance{Asset: asset, Onhand: onhand.Add(delta)}
	return kvutil.Set(ctx, rw, path.Join(balancesDir, asset), b)
}

func (v *Exchange) openOrders(ctx context.Context, r kv.Reader, pair string) ([]*gobOrder, error) {
	var orders []*gobOrder
	begin, end := kvutil.PathRange(openOrdersDir)
	collect := func(ctx context.Context, k string, o *gobOrder) error {
		if len(pair) == 0 || o.Pair == pair {
			orders = append(orders, o)
		}
		return nil
	}
	if err := kvutil.Ascend(ctx, r, begin, end, collect); err != nil {
		return nil, fmt.Errorf("could not scan open orders: %w", err)
	}
	return orders, nil
}

// PlaceOrder accepts a limit order. Requests repeating a client order id
// return the order created by the first request.
func (v *Exchange) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.OrderHandle, error) {
	if err := req.Check(); err != nil {
		return nil, err
	}
	if req.Type != exchange.LIMIT {
		return nil, fmt.Errorf("order type %s is not supported: %w", req.Type, os.ErrInvalid)
	}
	base, quote, err := exchange.SplitPair(req.Pair)
	if err != nil {
		return nil, err
	}
	ticker, err := v.prices.GetTicker(ctx, req.Pair)
	if err != nil {
		return nil, fmt.Errorf("could not fetch quote for %s: %w", req.Pair, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var orderID string
	place := func(ctx context.Context, rw kv.ReadWriter) error {
		clientKey := path.Join(clientOrderDir, req.ClientOrderID.String())
		if req.ClientOrderID != uuid.Nil {
			if c, err := kvutil.Get[gobClientOrder](ctx, rw, clientKey); err == nil {
				orderID = c.OrderID
				return nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}

		if err := v.checkFunds(ctx, rw, req, base, quote); err != nil {
			return err
		}

		order := &gobOrder{
			OrderID:       uuid.NewString(),
			ClientOrderID: req.ClientOrderID,
			Pair:          req.Pair,
			Side:          req.Side.String(),
			Price:         req.Price,
			Amount:        req.Amount,
			CreatedAt:     time.Now(),
		}
		orderID = order.OrderID

		if req.ClientOrderID != uuid.Nil {
			if err := kvutil.Set(ctx, rw, clientKey, &gobClientOrder{OrderID: order.OrderID}); err != nil {
				return err
			}
		}
		if crosses(order, ticker) {
			return v.fill(ctx, rw, order, base, quote, exchange.Taker)
		}
		return kvutil.Set(ctx, rw, path.Join(openOrdersDir, order.OrderID), order)
	}
	if err := kv.WithReadWriter(ctx, v.db, place); err != nil {
		return nil, fmt.Errorf("could not place paper order %s: %w", req, err)
	}
	return &exchange.OrderHandle{OrderID: exchange.OrderID(orderID)}, nil
}

// checkFunds verifies that the on-hand balance covers the new order together
// with every open order on the same side.
func (v *Exchange) checkFunds(ctx context.Context, r kv.Reader, req *exchange.OrderRequest, base, quote string) error {
	open, err := v.openOrders(ctx, r, "")
	if err != nil {
		return err
	}

	// Buys reserve their value plus the largest fee either fill could charge.
	feeRate := decimal.Max(decimal.Zero, v.opts.MakerFeeRate, v.opts.TakerFeeRate)
	buyCost := func(price, amount decimal.Decimal) decimal.Decimal {
		value := price.Mul(amount)
		return value.Add(value.Mul(feeRate))
	}

	asset, need := base, req.Amount
	if req.Side == exchange.BUY {
		asset, need = quote, buyCost(req.Price, req.Amount)
	}
	for _, o := range open {
		b, q, err := exchange.SplitPair(o.Pair)
		if err != nil {
			continue
		}
		switch {
		case o.Side == exchange.BUY.String() && q == asset:
			need = need.Add(buyCost(o.Price, o.Amount))
		case o.Side == exchange.SELL.String() && b == asset:
			need = need.Add(o.Amount)
		}
	}

	onhand, err := v.onhand(ctx, r, asset)
	if err != nil {
		return err
	}
	if onhand.LessThan(need) {
		return fmt.Errorf("%s on-hand %s is less than required %s: %w", asset, onhand, need, exchange.ErrNoFund)
	}
	return nil
}

func crosses(o *gobOrder, t *exchange.Ticker) bool {
	if o.Side == exchange.BUY.String() {
		return t.Sell.IsPositive() && t.Sell.LessThanOrEqual(o.Price)
	}
	return t.Buy.IsPositive() && t.Buy.GreaterThanOrEqual(o.Price)
}

// fill executes the order at its limit price and records the trade.
func (v *Exchange) fill(ctx context.Context, rw kv.ReadWriter, o *gobOrder, base, quote, makerTaker string) error {
	state, err := kvutil.Get[gobState](ctx, rw, stateKey)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		state = new(gobState)
	}
	state.NextTradeSeq++

	rate := v.opts.MakerFeeRate
	if makerTaker == exchange.Taker {
		rate = v.opts.TakerFeeRate
	}
	value := o.Price.Mul(o.Amount)
	fee := value.Mul(rate)

	if o.Side == exchange.BUY.String() {
		if err := v.adjust(ctx, rw, base, o.Amount); err != nil {
			return err
		}
		if err := v.adjust(ctx, rw, quote, value.Add(fee).Neg()); err != nil {
			return err
		}
	} else {
		if err := v.adjust(ctx, rw, base, o.Amount.Neg()); err != nil {
			return err
		}
		if err := v.adjust(ctx, rw, quote, value.Sub(fee)); err != nil {
			return err
		}
	}

	now := time.Now()
	trade := &gobTrade{
		TradeID:    fmt.Sprintf("%d", state.NextTradeSeq),
		OrderID:    o.OrderID,
		Pair:       o.Pair,
		Side:       o.Side,
		Price:      o.Price,
		Amount:     o.Amount,
		Fee:        fee,
		MakerTaker: makerTaker,
		ExecutedAt: now,
	}
	if err := kvutil.Set(ctx, rw, path.Join(tradesDir, fmt.Sprintf("%020d", state.NextTradeSeq)), trade); err != nil {
		return err
	}
	if err := kvutil.Set(ctx, rw, stateKey, state); err != nil {
		return err
	}

	o.FilledAt = now
	if err := kvutil.Set(ctx, rw, path.Join(ordersDir, o.OrderID), o); err != nil {
		return err
	}
	if err := rw.Delete(ctx, path.Join(openOrdersDir, o.OrderID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	slog.Debug("paper order filled", "order-id", o.OrderID, "side", o.Side, "price", o.Price, "amount", o.Amount, "liquidity", makerTaker)
	return nil
}

// match fills every open order of the pair that the current quote crosses.
func (v *Exchange) match(ctx context.Context, pair string) error {
	base, quote, err := exchange.SplitPair(pair)
	if err != nil {
		return err
	}
	ticker, err := v.prices.GetTicker(ctx, pair)
	if err != nil {
		return fmt.Errorf("could not fetch quote for %s: %w", pair, err)
	}

	return kv.WithReadWriter(ctx, v.db, func(ctx context.Context, rw kv.ReadWriter) error {
		open, err := v.openOrders(ctx, rw, pair)
		if err != nil {
			return err
		}
		for _, o := range open {
			if !crosses(o, ticker) {
				continue
			}
			if err := v.fill(ctx, rw, o, base, quote, exchange.Maker); err != nil {
				return fmt.Errorf("could not fill order %s: %w", o.OrderID, err)
			}
		}
		return nil
	})
}

func (v *Exchange) GetActiveOrders(ctx context.Context, pair string) ([]*exchange.ActiveOrder, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.match(ctx, pair); err != nil {
		return nil, err
	}

	var active []*exchange.ActiveOrder
	err := kv.WithReader(ctx, v.db, func(ctx context.Context, r kv.Reader) error {
		open, err := v.openOrders(ctx, r, pair)
		if err != nil {
			return err
		}
		for _, o := range open {
			active = append(active, &exchange.ActiveOrder{
				OrderID:         exchange.OrderID(o.OrderID),
				Pair:            o.Pair,
				Side:            exchange.Side(o.Side),
				Price:           o.Price,
				RemainingAmount: o.Amount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

func (v *Exchange) GetTradeHistory(ctx context.Context, pair string, count int) ([]*exchange.Trade, error) {
	if count <= 0 {
		return nil, fmt.Errorf("trade count must be positive: %w", os.ErrInvalid)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.match(ctx, pair); err != nil {
		return nil, err
	}

	var trades []*exchange.Trade
	begin, end := kvutil.PathRange(tradesDir)
	collect := func(ctx context.Context, k string, t *gobTrade) error {
		if !strings.EqualFold(t.Pair, pair) {
			return nil
		}
		trades = append(trades, &exchange.Trade{
			TradeID:    t.TradeID,
			OrderID:    exchange.OrderID(t.OrderID),
			Pair:       t.Pair,
			Side:       exchange.Side(t.Side),
			Price:      t.Price,
			Amount:     t.Amount,
			MakerTaker: t.MakerTaker,
		})
		if len(trades) >= count {
			return kvutil.ErrStop
		}
		return nil
	}
	err := kv.WithReader(ctx, v.db, func(ctx context.Context, r kv.Reader) error {
		return kvutil.Descend(ctx, r, begin, end, collect)
	})
	if err != nil {
		return nil, fmt.Errorf("could not scan trade history: %w", err)
	}
	return trades, nil
}
