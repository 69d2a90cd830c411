// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/bvk/pairbot/bitbank"
	"github.com/bvk/pairbot/config"
	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/paper"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"github.com/nightlyone/lockfile"
	"github.com/shopspring/decimal"
	"github.com/visvasity/sglog"
)

func isGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}

// openDB opens the badger database in the data directory under an exclusive
// lock file. An in-memory database is returned when dataDir is empty.
func openDB(ctx context.Context, dataDir string) (kv.Database, func(), error) {
	if len(dataDir) == 0 {
		slog.Info("no data directory is configured; paper account will not persist")
		return kvmemdb.New(), func() {}, nil
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("could not create data directory %q: %w", dataDir, err)
	}
	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("could not determine data-dir %q absolute path: %w", dataDir, err)
	}

	lockPath := filepath.Join(dataDir, "pairbot.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		return nil, nil, fmt.Errorf("could not get lock on file %q (is another instance running?): %w", lockPath, err)
	}

	bopts := badger.DefaultOptions(filepath.Join(dataDir, "db"))
	bdb, err := badger.Open(bopts)
	if err != nil {
		flock.Unlock()
		return nil, nil, fmt.Errorf("could not open the database: %w", err)
	}
	closer := func() {
		if err := bdb.Close(); err != nil {
			slog.Warn("could not close the database (ignored)", "err", err)
		}
		flock.Unlock()
	}
	return kvbadger.New(bdb, isGoodKey), closer, nil
}

func newPriceSource(cfg *config.Config) (paper.PriceSource, error) {
	switch cfg.Paper.PriceSource {
	case config.PriceRandomWalk:
		start := decimal.NewFromFloat(cfg.Paper.StartPrice)
		return paper.NewRandomWalk(start, cfg.Paper.Step, cfg.Paper.Spread, cfg.Paper.Seed), nil
	case config.PriceBitbank:
		client, err := bitbank.New(nil /* opts */)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("price source %q is not supported: %w", cfg.Paper.PriceSource, os.ErrInvalid)
}

func openVenue(ctx context.Context, cfg *config.Config, db kv.Database) (*paper.Exchange, error) {
	prices, err := newPriceSource(cfg)
	if err != nil {
		return nil, err
	}
	opts := &paper.Options{
		MakerFeeRate:    decimal.NewFromFloat(cfg.MakerFee),
		TakerFeeRate:    decimal.NewFromFloat(cfg.TakerFee),
		InitialBalances: cfg.PaperBalances(),
	}
	return paper.New(ctx, db, prices, opts)
}

// setupLogging sends log messages to per-level files in logDir. Messages go
// to stderr when logDir is empty.
func setupLogging(logDir string, debug bool) func() {
	if len(logDir) == 0 {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return func() {}
	}
	backend := sglog.NewBackend(&sglog.Options{
		LogDirs:       []string{logDir},
		LogFileHeader: true,
	})
	if debug {
		backend.SetLevel(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(backend.Handler()))
	return backend.Close
}

func printBalances(w io.Writer, balances []*exchange.Balance) {
	for _, b := range balances {
		fmt.Fprintf(w, "%s\t%s\n", b.Asset, b.OnhandAmount.String())
	}
}
