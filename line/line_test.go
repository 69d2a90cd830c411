// Copyright (c) 2023 BVK Chaitanya

package line

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/idgen"
	"github.com/bvk/pairbot/ledger"
	"github.com/bvk/pairbot/sender"
	"github.com/shopspring/decimal"
)

var (
	makerRate = decimal.RequireFromString("-0.0005")
	takerRate = decimal.RequireFromString("0.0015")
)

// scriptedGateway fills both orders after activePolls polls and reports the
// configured liquidity for each side in the trade history.
type scriptedGateway struct {
	mu sync.Mutex

	ticker    *exchange.Ticker
	tickerErr error

	failSide    exchange.Side
	activePolls int
	liquidity   map[exchange.Side]string

	historyErrs int

	nextID int
	orders []*exchange.ActiveOrder
	polls  int
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{
		ticker: &exchange.Ticker{
			Buy:  decimal.NewFromInt(100),
			Sell: decimal.NewFromInt(102),
			Last: decimal.NewFromInt(101),
		},
		activePolls: 2,
		liquidity:   map[exchange.Side]string{exchange.BUY: exchange.Maker, exchange.SELL: exchange.Maker},
	}
}

func (g *scriptedGateway) GetTicker(ctx context.Context, pair string) (*exchange.Ticker, error) {
	if g.tickerErr != nil {
		return nil, g.tickerErr
	}
	return g.ticker, nil
}

func (g *scriptedGateway) GetBalances(ctx context.Context) ([]*exchange.Balance, error) {
	return nil, nil
}

func (g *scriptedGateway) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.OrderHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if req.Side == g.failSide {
		return nil, fmt.Errorf("rejected")
	}
	g.nextID++
	id := exchange.OrderID(fmt.Sprintf("%d", g.nextID))
	g.orders = append(g.orders, &exchange.ActiveOrder{OrderID: id, Pair: req.Pair, Side: req.Side, Price: req.Price, RemainingAmount: req.Amount})
	return &exchange.OrderHandle{OrderID: id}, nil
}

func (g *scriptedGateway) GetActiveOrders(ctx context.Context, pair string) ([]*exchange.ActiveOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.polls++
	if g.activePolls < 0 || g.polls <= g.activePolls {
		return g.orders, nil
	}
	return nil, nil
}

func (g *scriptedGateway) GetTradeHistory(ctx context.Context, pair string, count int) ([]*exchange.Trade, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.historyErrs > 0 {
		g.historyErrs--
		return nil, fmt.Errorf("temporarily unavailable")
	}
	var trades []*exchange.Trade
	for _, o := range g.orders {
		trades = append(trades, &exchange.Trade{OrderID: o.OrderID, Pair: pair, Side: o.Side, Price: o.Price, Amount: o.RemainingAmount, MakerTaker: g.liquidity[o.Side]})
	}
	trades = append(trades, &exchange.Trade{OrderID: "unrelated", MakerTaker: exchange.Taker})
	return trades, nil
}

func newTestLine(t *testing.T, gw exchange.Gateway, ldg *ledger.Ledger) *Line {
	snd, err := sender.New(gw, &sender.Options{Retries: 2})
	if err != nil {
		t.Fatal(err)
	}
	opts := &Options{
		Pair:          "xrp_jpy",
		Amount:        decimal.NewFromInt(10),
		Range:         decimal.RequireFromString("0.01"),
		MakerFeeRate:  makerRate,
		TakerFeeRate:  takerRate,
		CheckInterval: time.Millisecond,
	}
	l, err := New(1, gw, snd, ldg, idgen.New(t.Name()), opts)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestComputeProfit(t *testing.T) {
	buy, sell, amount := decimal.NewFromInt(99), decimal.RequireFromString("103.02"), decimal.NewFromInt(10)

	if p := ComputeProfit(buy, sell, amount, makerRate, makerRate); !p.Equal(decimal.RequireFromString("41.2101")) {
		t.Fatalf("want 41.2101, got %s", p)
	}
	if p := ComputeProfit(buy, sell, amount, makerRate, takerRate); !p.Equal(decimal.RequireFromString("39.1497")) {
		t.Fatalf("want 39.1497, got %s", p)
	}
}

func TestFeeRates(t *testing.T) {
	trades := []*exchange.Trade{
		{OrderID: "b", MakerTaker: exchange.Taker},
		{OrderID: "s", MakerTaker: exchange.Maker},
		{OrderID: "b", MakerTaker: exchange.Maker},
		{OrderID: "s", MakerTaker: exchange.Taker},
		{OrderID: "", MakerTaker: exchange.Taker},
	}

	// Last matching entry decides each leg.
	buyRate, sellRate := FeeRates(trades, "b", "s", makerRate, takerRate)
	if !buyRate.Equal(makerRate) || !sellRate.Equal(takerRate) {
		t.Fatalf("want maker/taker, got %s/%s", buyRate, sellRate)
	}

	// Repeating the computation gives the same rates.
	buyRate2, sellRate2 := FeeRates(trades, "b", "s", makerRate, takerRate)
	if !buyRate2.Equal(buyRate) || !sellRate2.Equal(sellRate) {
		t.Fatalf("want %s/%s, got %s/%s", buyRate, sellRate, buyRate2, sellRate2)
	}

	// Empty ids never match and missing legs stay maker.
	buyRate, sellRate = FeeRates(trades, "", "missing", makerRate, takerRate)
	if !buyRate.Equal(makerRate) || !sellRate.Equal(makerRate) {
		t.Fatalf("want maker/maker, got %s/%s", buyRate, sellRate)
	}
}

func TestLineLifecycle(t *testing.T) {
	ctx := context.Background()

	gw := newScriptedGateway()
	gw.liquidity[exchange.SELL] = exchange.Taker

	var ldg ledger.Ledger
	ldg.Add(decimal.NewFromInt(1))

	l := newTestLine(t, gw, &ldg)
	if err := l.Place(ctx); err != nil {
		t.Fatal(err)
	}
	if s := l.State(); s != Monitoring {
		t.Fatalf("want monitoring, got %s", s)
	}
	status := l.Status()
	if !status.BuyPrice.Equal(decimal.NewFromInt(99)) || !status.SellPrice.Equal(decimal.RequireFromString("103.02")) {
		t.Fatalf("want 99/103.02, got %s/%s", status.BuyPrice, status.SellPrice)
	}
	if status.BuyOrderID == "" || status.SellOrderID == "" {
		t.Fatalf("want both order ids, got %q/%q", status.BuyOrderID, status.SellOrderID)
	}
	if status.Profit != nil {
		t.Fatalf("want nil profit before accounting, got %s", status.Profit)
	}

	if err := l.Complete(ctx); err != nil {
		t.Fatal(err)
	}
	if s := l.State(); s != Accounted {
		t.Fatalf("want accounted, got %s", s)
	}
	if gw.polls != gw.activePolls+1 {
		t.Fatalf("want %d polls, got %d", gw.activePolls+1, gw.polls)
	}

	status = l.Status()
	if !status.Profit.Equal(decimal.RequireFromString("39.1497")) {
		t.Fatalf("want 39.1497, got %s", status.Profit)
	}
	if !status.TotalProfit.Equal(decimal.RequireFromString("40.1497")) {
		t.Fatalf("want 40.1497, got %s", status.TotalProfit)
	}
	if !status.SellFeeRate.Equal(takerRate) || !status.BuyFeeRate.Equal(makerRate) {
		t.Fatalf("want maker/taker rates, got %s/%s", status.BuyFeeRate, status.SellFeeRate)
	}

	if _, _, err := l.Account(); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want ErrInvalid on second accounting, got %v", err)
	}
	if n := ldg.Count(); n != 2 {
		t.Fatalf("want 2 ledger entries, got %d", n)
	}

	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if s := l.State(); s != Released {
		t.Fatalf("want released, got %s", s)
	}
	if l.Interrupt() {
		t.Fatalf("released line must not be interrupted")
	}
}

func TestLineSendFailure(t *testing.T) {
	ctx := context.Background()

	gw := newScriptedGateway()
	gw.failSide = exchange.BUY

	var ldg ledger.Ledger
	l := newTestLine(t, gw, &ldg)
	if err := l.Place(ctx); err != nil {
		t.Fatal(err)
	}
	if s := l.Status(); s.BuyOrderID != "" || s.SellOrderID == "" {
		t.Fatalf("want only a sell order id, got %q/%q", s.BuyOrderID, s.SellOrderID)
	}
	if err := l.Complete(ctx); err != nil {
		t.Fatal(err)
	}
	// Profit uses the intended prices and maker fees.
	if v := ldg.Total(); !v.Equal(decimal.RequireFromString("41.2101")) {
		t.Fatalf("want 41.2101, got %s", v)
	}
}

func TestLineHistoryRetry(t *testing.T) {
	gw := newScriptedGateway()
	gw.historyErrs = 3
	gw.liquidity[exchange.BUY] = exchange.Taker

	var ldg ledger.Ledger
	l := newTestLine(t, gw, &ldg)
	if err := l.Place(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Complete(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := l.Status(); !s.BuyFeeRate.Equal(takerRate) {
		t.Fatalf("want taker buy rate, got %s", s.BuyFeeRate)
	}
}

func TestLineTickerFailure(t *testing.T) {
	gw := newScriptedGateway()
	gw.tickerErr = fmt.Errorf("service unavailable")

	var ldg ledger.Ledger
	l := newTestLine(t, gw, &ldg)
	if err := l.Place(context.Background()); err == nil {
		t.Fatalf("want ticker error, got nil")
	}
	if s := l.State(); s != Failed {
		t.Fatalf("want failed, got %s", s)
	}
	if gw.nextID != 0 {
		t.Fatalf("want no orders, got %d", gw.nextID)
	}
}

func TestLineInterrupted(t *testing.T) {
	gw := newScriptedGateway()
	gw.activePolls = -1

	var ldg ledger.Ledger
	l := newTestLine(t, gw, &ldg)
	if err := l.Place(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Complete(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
	if s := l.State(); s != Interrupted {
		t.Fatalf("want interrupted, got %s", s)
	}
	if ldg.Count() != 0 {
		t.Fatalf("interrupted line must not be accounted")
	}
}

func TestLinePlaceTwice(t *testing.T) {
	gw := newScriptedGateway()
	var ldg ledger.Ledger
	l := newTestLine(t, gw, &ldg)
	if err := l.Place(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Place(context.Background()); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}
