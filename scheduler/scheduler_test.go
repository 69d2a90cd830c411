// Copyright (c) 2023 BVK Chaitanya

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/paper"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// instantGateway fills every order as soon as it is placed.
type instantGateway struct {
	mu sync.Mutex

	balances []*exchange.Balance

	tickerCalls   atomic.Int32
	failTickerAt  int32
	panicTickerAt int32

	placed []*exchange.OrderRequest
	trades []*exchange.Trade
}

func (g *instantGateway) GetTicker(ctx context.Context, pair string) (*exchange.Ticker, error) {
	n := g.tickerCalls.Add(1)
	if g.panicTickerAt > 0 && n >= g.panicTickerAt {
		panic("ticker feed crashed")
	}
	if g.failTickerAt > 0 && n >= g.failTickerAt {
		return nil, fmt.Errorf("ticker unavailable")
	}
	return &exchange.Ticker{Buy: d("100"), Sell: d("102"), Last: d("101")}, nil
}

func (g *instantGateway) GetBalances(ctx context.Context) ([]*exchange.Balance, error) {
	return g.balances, nil
}

func (g *instantGateway) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.OrderHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.placed = append(g.placed, req)
	id := exchange.OrderID(fmt.Sprintf("order-%d", len(g.placed)))
	g.trades = append([]*exchange.Trade{{OrderID: id, Side: req.Side, MakerTaker: exchange.Maker}}, g.trades...)
	return &exchange.OrderHandle{OrderID: id}, nil
}

func (g *instantGateway) GetActiveOrders(ctx context.Context, pair string) ([]*exchange.ActiveOrder, error) {
	return nil, nil
}

func (g *instantGateway) GetTradeHistory(ctx context.Context, pair string, count int) ([]*exchange.Trade, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.trades) > count {
		return g.trades[:count], nil
	}
	return g.trades, nil
}

func (g *instantGateway) numPlaced() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.placed)
}

func testOptions() *Options {
	return &Options{
		Pair:          "xrp_jpy",
		TradeAmount:   d("400"),
		Range:         d("0.01"),
		MaxLines:      4,
		RunTime:       20 * time.Millisecond,
		CheckInterval: time.Millisecond,
		OrderInterval: time.Millisecond,
		OrderRetry:    5,
		MakerFeeRate:  d("-0.0005"),
		TakerFeeRate:  d("0.0015"),
	}
}

func richBalances() []*exchange.Balance {
	return []*exchange.Balance{
		{Asset: "xrp", OnhandAmount: d("1000")},
		{Asset: "jpy", OnhandAmount: d("1000000")},
	}
}

func TestInsufficientBalance(t *testing.T) {
	ctx := context.Background()

	gw := &instantGateway{balances: []*exchange.Balance{
		{Asset: "xrp", OnhandAmount: d("399")},
		{Asset: "jpy", OnhandAmount: d("1000000")},
	}}
	s, err := New(gw, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Run(ctx); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	if n := gw.numPlaced(); n != 0 {
		t.Fatalf("want no orders, got %d", n)
	}

	// Comparison is strict: exactly the trade amount is not enough.
	gw.balances[0].OnhandAmount = d("400")
	if err := s.CheckBalance(ctx); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}

	// Quote must exceed 400 * 101.
	gw.balances[0].OnhandAmount = d("401")
	gw.balances[1].OnhandAmount = d("40400")
	if err := s.CheckBalance(ctx); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	gw.balances[1].OnhandAmount = d("40400.01")
	if err := s.CheckBalance(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestRunAccountsEveryLine(t *testing.T) {
	ctx := context.Background()

	gw := &instantGateway{balances: richBalances()}
	s, err := New(gw, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	receiver, err := s.Results()
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	var results []*Result
	go func() {
		for {
			r, err := receiver.Receive()
			if err != nil {
				return
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}
	}()

	summary, err := s.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Lines == 0 {
		t.Fatalf("want at least one line")
	}
	if summary.Completed != summary.Lines || summary.Interrupted != 0 || summary.Failed != 0 {
		t.Fatalf("want every line completed, got %s", summary)
	}
	if n := gw.numPlaced(); n != int(2*summary.Lines) {
		t.Fatalf("want %d orders, got %d", 2*summary.Lines, n)
	}

	// Each line trades 100 units: (103.02 - 99) * 100 + (103.02 + 99) * 100 * 0.0005.
	perLine := d("412.101")
	want := perLine.Mul(decimal.NewFromInt(int64(summary.Completed)))
	if !summary.TotalProfit.Equal(want) {
		t.Fatalf("want %s, got %s", want, summary.TotalProfit)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(results)
		mu.Unlock()
		if n == int(summary.Completed) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("want %d results, got %d", summary.Completed, n)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	sum, seen := decimal.Zero, make(map[uint64]bool)
	for _, r := range results {
		if !r.Profit.Equal(perLine) {
			t.Fatalf("line %d: want %s, got %s", r.Index, perLine, r.Profit)
		}
		if seen[r.Index] {
			t.Fatalf("line %d reported twice", r.Index)
		}
		seen[r.Index] = true
		sum = sum.Add(r.Profit)
	}
	if !sum.Equal(summary.TotalProfit) {
		t.Fatalf("want %s, got %s", summary.TotalProfit, sum)
	}
	if v := s.Status().AvailableSlots; v != 4 {
		t.Fatalf("want 4 free slots, got %d", v)
	}
	if v := totalProfitGauge(t); v != summary.TotalProfit.InexactFloat64() {
		t.Fatalf("want total profit gauge %s, got %v", summary.TotalProfit, v)
	}
}

func totalProfitGauge(t *testing.T) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() == "pairbot_total_profit" && len(f.GetMetric()) == 1 {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("total profit gauge is not registered")
	return 0
}

func TestTickerFailureReleasesSlot(t *testing.T) {
	// The first ticker call is used by the balance check.
	gw := &instantGateway{balances: richBalances(), failTickerAt: 2}

	opts := testOptions()
	opts.MaxLines = 1
	s, err := New(gw, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Lines < 2 {
		t.Fatalf("want admission to continue after failures, got %d lines", summary.Lines)
	}
	if summary.Failed != summary.Lines {
		t.Fatalf("want every line failed, got %s", summary)
	}
	if n := gw.numPlaced(); n != 0 {
		t.Fatalf("want no orders, got %d", n)
	}
}

func TestBlockedAdmission(t *testing.T) {
	prices := new(paper.StaticPrices)
	prices.Set("xrp_jpy", &exchange.Ticker{Buy: d("100"), Sell: d("102"), Last: d("101")})
	ex, err := paper.New(context.Background(), kvmemdb.New(), prices, &paper.Options{
		InitialBalances: map[string]decimal.Decimal{"xrp": d("1000"), "jpy": d("1000000")},
	})
	if err != nil {
		t.Fatal(err)
	}

	opts := testOptions()
	opts.MaxLines = 2
	opts.RunTime = time.Hour
	s, err := New(ex, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type runResult struct {
		summary *Summary
		err     error
	}
	doneCh := make(chan runResult, 1)
	go func() {
		summary, err := s.Run(ctx)
		doneCh <- runResult{summary, err}
	}()

	// Paper orders rest because the quote never moves, so both slots stay
	// taken and admission blocks.
	deadline := time.Now().Add(time.Second)
	for s.Status().Admitted < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("want 2 admitted lines, got %d", s.Status().Admitted)
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	status := s.Status()
	if status.Admitted != 2 {
		t.Fatalf("want 2 admitted lines while slots are taken, got %d", status.Admitted)
	}
	if status.AvailableSlots != 0 {
		t.Fatalf("want 0 free slots, got %d", status.AvailableSlots)
	}
	if len(status.Lines) != 2 || status.Lines[0].Index != 1 || status.Lines[1].Index != 2 {
		t.Fatalf("want lines 1 and 2 active, got %v", status.Lines)
	}

	cancel()
	rr := <-doneCh
	if rr.err != nil {
		t.Fatal(rr.err)
	}
	if rr.summary.Lines != 2 || rr.summary.Interrupted != 2 || rr.summary.Completed != 0 {
		t.Fatalf("want 2 interrupted lines, got %s", rr.summary)
	}
	if !rr.summary.TotalProfit.IsZero() {
		t.Fatalf("want zero profit, got %s", rr.summary.TotalProfit)
	}
	if v := s.Status().AvailableSlots; v != 2 {
		t.Fatalf("want 2 free slots, got %d", v)
	}
}

func TestOptionsCheck(t *testing.T) {
	var opts Options
	opts.setDefaults()
	if opts.RunTime != time.Hour {
		t.Fatalf("want 1h default run time, got %s", opts.RunTime)
	}

	mods := []func(*Options){
		func(o *Options) { o.Range = d("1.5") },
		func(o *Options) { o.Range = d("-0.01") },
		func(o *Options) { o.TradeHistoryCount = -1 },
		func(o *Options) { o.RetryBackoff = -time.Second },
	}
	for i, mod := range mods {
		opts := testOptions()
		mod(opts)
		if _, err := New(new(instantGateway), opts); !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("%d: want ErrInvalid, got %v", i, err)
		}
	}
}

func TestPlacementPanicFailsLine(t *testing.T) {
	// The first ticker call is used by the balance check.
	gw := &instantGateway{balances: richBalances(), panicTickerAt: 2}

	opts := testOptions()
	opts.MaxLines = 1
	s, err := New(gw, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Lines == 0 || summary.Failed != summary.Lines {
		t.Fatalf("want every line failed, got %s", summary)
	}
	if v := s.Status().AvailableSlots; v != 1 {
		t.Fatalf("want 1 free slot, got %d", v)
	}
}

func TestAdmissionResumesAfterRelease(t *testing.T) {
	prices := new(paper.StaticPrices)
	prices.Set("xrp_jpy", &exchange.Ticker{Buy: d("100"), Sell: d("102"), Last: d("101")})
	ex, err := paper.New(context.Background(), kvmemdb.New(), prices, &paper.Options{
		MakerFeeRate:    d("-0.0005"),
		TakerFeeRate:    d("0.0015"),
		InitialBalances: map[string]decimal.Decimal{"xrp": d("1000"), "jpy": d("1000000")},
	})
	if err != nil {
		t.Fatal(err)
	}

	opts := testOptions()
	opts.MaxLines = 1
	opts.RunTime = time.Hour
	s, err := New(ex, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type runResult struct {
		summary *Summary
		err     error
	}
	doneCh := make(chan runResult, 1)
	go func() {
		summary, err := s.Run(ctx)
		doneCh <- runResult{summary, err}
	}()

	waitFor := func(what string, cond func(*Status) bool) {
		deadline := time.Now().Add(2 * time.Second)
		for {
			status := s.Status()
			if status.AvailableSlots < 0 || status.AvailableSlots > 1 {
				t.Fatalf("free slots out of bounds: %d", status.AvailableSlots)
			}
			if cond(status) {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %s: admitted %d free %d", what, status.Admitted, status.AvailableSlots)
			}
			time.Sleep(time.Millisecond)
		}
	}

	// Line 1 buys at 99 and sells at 103.02; both rest at the initial quote.
	waitFor("line 1", func(s *Status) bool { return s.Admitted == 1 && len(s.Lines) == 1 })
	time.Sleep(20 * time.Millisecond)
	if status := s.Status(); status.Admitted != 1 || status.AvailableSlots != 0 {
		t.Fatalf("want 1 admitted line and no free slot, got %d and %d", status.Admitted, status.AvailableSlots)
	}

	// Fill the buy, then the sell.
	prices.Set("xrp_jpy", &exchange.Ticker{Buy: d("97"), Sell: d("98"), Last: d("98")})
	deadline := time.Now().Add(2 * time.Second)
	for {
		active, err := ex.GetActiveOrders(ctx, "xrp_jpy")
		if err != nil {
			t.Fatal(err)
		}
		if len(active) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("want the buy filled, got %d active orders", len(active))
		}
		time.Sleep(time.Millisecond)
	}
	// Line 2 buys at 102.96 and sells at 106.05, so it rests at this quote.
	prices.Set("xrp_jpy", &exchange.Ticker{Buy: d("104"), Sell: d("105"), Last: d("104")})

	waitFor("line 2", func(s *Status) bool { return s.Completed == 1 && s.Admitted == 2 })
	time.Sleep(20 * time.Millisecond)
	if status := s.Status(); status.Admitted != 2 || status.AvailableSlots != 0 {
		t.Fatalf("want exactly 2 admitted lines and no free slot, got %d and %d", status.Admitted, status.AvailableSlots)
	}

	cancel()
	rr := <-doneCh
	if rr.err != nil {
		t.Fatal(rr.err)
	}
	if rr.summary.Lines != 2 || rr.summary.Completed != 1 || rr.summary.Interrupted != 1 {
		t.Fatalf("want 1 completed and 1 interrupted line, got %s", rr.summary)
	}
	// Both legs of line 1 rested before filling, so both earn the maker rebate.
	if !rr.summary.TotalProfit.Equal(d("1648.404")) {
		t.Fatalf("want 1648.404, got %s", rr.summary.TotalProfit)
	}
}
