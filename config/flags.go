// Copyright (c) 2023 BVK Chaitanya

package config

import (
	"flag"
	"time"
)

// Flags are the command-line overrides. Only flags that were set explicitly
// replace the values loaded from the file and environment.
type Flags struct {
	ConfigFile string

	pair          string
	runTime       time.Duration
	tradeAmount   float64
	priceRange    float64
	maxLines      int
	checkInterval time.Duration
	orderInterval time.Duration
	orderRetry    int
	retryBackoff  time.Duration
	makerFee      float64
	takerFee      float64
	priceSource   string
	listenAddr    string
	dataDir       string
	logDir        string
	secretsFile   string
}

func (f *Flags) Register(fset *flag.FlagSet) {
	d := Default()
	fset.StringVar(&f.ConfigFile, "config", "", "path to a yaml config file")
	fset.StringVar(&f.pair, "pair", d.Pair, "trading pair in base_quote form")
	fset.DurationVar(&f.runTime, "run-time", d.RunTime, "how long new lines are admitted")
	fset.Float64Var(&f.tradeAmount, "trade-amount", d.TradeAmount, "total base amount split across all lines")
	fset.Float64Var(&f.priceRange, "range", d.Range, "fractional distance of order prices from the quote")
	fset.IntVar(&f.maxLines, "max-lines", d.MaxLines, "maximum number of concurrent lines")
	fset.DurationVar(&f.checkInterval, "check-interval", d.CheckInterval, "order status polling interval")
	fset.DurationVar(&f.orderInterval, "order-interval", d.OrderInterval, "minimum delay between line admissions")
	fset.IntVar(&f.orderRetry, "order-retry", d.OrderRetry, "order placement attempts")
	fset.DurationVar(&f.retryBackoff, "retry-backoff", d.RetryBackoff, "initial delay between order placement attempts")
	fset.Float64Var(&f.makerFee, "maker-fee", d.MakerFee, "maker fee rate")
	fset.Float64Var(&f.takerFee, "taker-fee", d.TakerFee, "taker fee rate")
	fset.StringVar(&f.priceSource, "price-source", d.Paper.PriceSource, "paper venue price source (bitbank or random-walk)")
	fset.StringVar(&f.listenAddr, "listen", "", "host:port for the status web server")
	fset.StringVar(&f.dataDir, "data-dir", "", "directory for the persistent paper venue database")
	fset.StringVar(&f.logDir, "log-dir", "", "directory for log files")
	fset.StringVar(&f.secretsFile, "secrets-file", "", "path to the notification secrets file")
}

// Apply copies the explicitly set flags into cfg.
func (f *Flags) Apply(fset *flag.FlagSet, cfg *Config) {
	fset.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "pair":
			cfg.Pair = f.pair
		case "run-time":
			cfg.RunTime = f.runTime
		case "trade-amount":
			cfg.TradeAmount = f.tradeAmount
		case "range":
			cfg.Range = f.priceRange
		case "max-lines":
			cfg.MaxLines = f.maxLines
		case "check-interval":
			cfg.CheckInterval = f.checkInterval
		case "order-interval":
			cfg.OrderInterval = f.orderInterval
		case "order-retry":
			cfg.OrderRetry = f.orderRetry
		case "retry-backoff":
			cfg.RetryBackoff = f.retryBackoff
		case "maker-fee":
			cfg.MakerFee = f.makerFee
		case "taker-fee":
			cfg.TakerFee = f.takerFee
		case "price-source":
			cfg.Paper.PriceSource = f.priceSource
		case "listen":
			cfg.ListenAddr = f.listenAddr
		case "data-dir":
			cfg.DataDir = f.dataDir
		case "log-dir":
			cfg.LogDir = f.logDir
		case "secrets-file":
			cfg.SecretsFile = f.secretsFile
		}
	})
}

// Load returns the configuration from all sources with flags applied last.
func (f *Flags) Load(fset *flag.FlagSet) (*Config, error) {
	cfg, err := Load(f.ConfigFile)
	if err != nil {
		return nil, err
	}
	f.Apply(fset, cfg)
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}
