// Copyright (c) 2023 BVK Chaitanya

package exchange

import (
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestSplitPair(t *testing.T) {
	base, quote, err := SplitPair("XRP_jpy")
	if err != nil {
		t.Fatal(err)
	}
	if base != "xrp" || quote != "jpy" {
		t.Fatalf("want xrp/jpy, got %s/%s", base, quote)
	}

	for _, bad := range []string{"", "xrp", "xrp_", "_jpy", "a_b_c"} {
		if _, _, err := SplitPair(bad); !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("%q: want ErrInvalid, got %v", bad, err)
		}
	}
}

func TestOrderRequestCheck(t *testing.T) {
	req := &OrderRequest{
		ClientOrderID: uuid.New(),
		Pair:          "xrp_jpy",
		Side:          BUY,
		Type:          LIMIT,
		Price:         decimal.NewFromInt(99),
		Amount:        decimal.NewFromInt(10),
	}
	if err := req.Check(); err != nil {
		t.Fatal(err)
	}

	zeroPrice := *req
	zeroPrice.Price = decimal.Zero
	if err := zeroPrice.Check(); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want ErrInvalid for zero price, got %v", err)
	}

	negAmount := *req
	negAmount.Amount = decimal.NewFromInt(-1)
	if err := negAmount.Check(); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want ErrInvalid for negative amount, got %v", err)
	}

	badSide := *req
	badSide.Side = "HOLD"
	if err := badSide.Check(); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want ErrInvalid for bad side, got %v", err)
	}
}

func TestFindBalance(t *testing.T) {
	balances := []*Balance{
		{Asset: "jpy", OnhandAmount: decimal.NewFromInt(100000)},
		{Asset: "xrp", OnhandAmount: decimal.NewFromInt(399)},
	}
	if v := FindBalance(balances, "XRP"); !v.Equal(decimal.NewFromInt(399)) {
		t.Fatalf("want 399, got %s", v)
	}
	if v := FindBalance(balances, "btc"); !v.IsZero() {
		t.Fatalf("want zero, got %s", v)
	}
}
