// Copyright (c) 2023 BVK Chaitanya

// Package config loads the run configuration. Values come from built-in
// defaults, then an optional YAML file, then PAIRBOT_ environment variables,
// and finally command-line flags that were set explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bvk/pairbot/exchange"
	"github.com/bvk/pairbot/scheduler"
	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PAIRBOT_"

// Price sources for the paper venue.
const (
	PriceBitbank    = "bitbank"
	PriceRandomWalk = "random-walk"
)

type Paper struct {
	// PriceSource is either PriceBitbank or PriceRandomWalk.
	PriceSource string `yaml:"price_source" env:"PRICE_SOURCE"`

	// Balances seed a new paper account, keyed by lower case asset name.
	Balances map[string]float64 `yaml:"balances" env:"BALANCES"`

	// StartPrice, Step and Spread configure the random walk price source.
	StartPrice float64 `yaml:"start_price" env:"START_PRICE"`
	Step       float64 `yaml:"step" env:"STEP"`
	Spread     float64 `yaml:"spread" env:"SPREAD"`
	Seed       uint64  `yaml:"seed" env:"SEED"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`
}

type Config struct {
	Pair string `yaml:"pair" env:"PAIR"`

	RunTime     time.Duration `yaml:"run_time" env:"RUN_TIME"`
	TradeAmount float64       `yaml:"trade_amount" env:"TRADE_AMOUNT"`
	Range       float64       `yaml:"range" env:"RANGE"`
	MaxLines    int           `yaml:"max_lines" env:"MAX_LINES"`

	CheckInterval time.Duration `yaml:"check_interval" env:"CHECK_INTERVAL"`
	OrderInterval time.Duration `yaml:"order_interval" env:"ORDER_INTERVAL"`

	OrderRetry   int           `yaml:"order_retry" env:"ORDER_RETRY"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`

	MakerFee float64 `yaml:"maker_fee" env:"MAKER_FEE"`
	TakerFee float64 `yaml:"taker_fee" env:"TAKER_FEE"`

	TradeHistoryCount int `yaml:"trade_history_count" env:"TRADE_HISTORY_COUNT"`

	Paper Paper `yaml:"paper" envPrefix:"PAPER_"`
	Kafka Kafka `yaml:"kafka" envPrefix:"KAFKA_"`

	ListenAddr  string `yaml:"listen" env:"LISTEN"`
	DataDir     string `yaml:"data_dir" env:"DATA_DIR"`
	LogDir      string `yaml:"log_dir" env:"LOG_DIR"`
	SecretsFile string `yaml:"secrets_file" env:"SECRETS_FILE"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Pair:              "xrp_jpy",
		RunTime:           60 * time.Minute,
		TradeAmount:       400,
		Range:             0.0006,
		MaxLines:          4,
		CheckInterval:     3 * time.Second,
		OrderInterval:     30 * time.Second,
		OrderRetry:        5,
		MakerFee:          -0.0005,
		TakerFee:          0.0015,
		TradeHistoryCount: 20,
		Paper: Paper{
			PriceSource: PriceBitbank,
			Balances:    map[string]float64{"xrp": 1000, "jpy": 100000},
			StartPrice:  100,
			Step:        0.001,
			Spread:      0.001,
			Seed:        1,
		},
		Kafka: Kafka{
			Topic: "pairbot-results",
		},
	}
}

// Load returns the defaults overridden by the YAML file, when fpath is not
// empty, and then by the environment.
func Load(fpath string) (*Config, error) {
	cfg := Default()
	if len(fpath) != 0 {
		data, err := os.ReadFile(fpath)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file %q: %w", fpath, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("could not parse environment: %w", err)
	}
	return cfg, nil
}

func (v *Config) Check() error {
	if _, _, err := exchange.SplitPair(v.Pair); err != nil {
		return err
	}
	if v.TradeAmount <= 0 {
		return fmt.Errorf("trade amount must be positive: %w", os.ErrInvalid)
	}
	if v.Range < 0 || v.Range >= 1 {
		return fmt.Errorf("range must be in [0, 1): %w", os.ErrInvalid)
	}
	if v.MaxLines < 1 {
		return fmt.Errorf("max lines must be at least one: %w", os.ErrInvalid)
	}
	if v.RunTime <= 0 || v.CheckInterval <= 0 || v.OrderInterval < 0 {
		return fmt.Errorf("run time and check interval must be positive: %w", os.ErrInvalid)
	}
	if v.OrderRetry < 1 {
		return fmt.Errorf("order retry must be at least one: %w", os.ErrInvalid)
	}
	if v.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative: %w", os.ErrInvalid)
	}
	if v.TradeHistoryCount < 1 {
		return fmt.Errorf("trade history count must be positive: %w", os.ErrInvalid)
	}
	switch v.Paper.PriceSource {
	case PriceBitbank:
	case PriceRandomWalk:
		if v.Paper.StartPrice <= 0 || v.Paper.Step < 0 || v.Paper.Spread < 0 {
			return fmt.Errorf("random walk needs a positive start price: %w", os.ErrInvalid)
		}
	default:
		return fmt.Errorf("price source %q is not supported: %w", v.Paper.PriceSource, os.ErrInvalid)
	}
	var errs []error
	for asset, amount := range v.Paper.Balances {
		if amount < 0 {
			errs = append(errs, fmt.Errorf("paper balance for %s cannot be negative: %w", asset, os.ErrInvalid))
		}
	}
	if len(v.Kafka.Brokers) != 0 && len(v.Kafka.Topic) == 0 {
		errs = append(errs, fmt.Errorf("kafka topic is required with brokers: %w", os.ErrInvalid))
	}
	return errors.Join(errs...)
}

// SchedulerOptions converts the configuration into scheduler options.
func (v *Config) SchedulerOptions() *scheduler.Options {
	return &scheduler.Options{
		Pair:              v.Pair,
		TradeAmount:       decimal.NewFromFloat(v.TradeAmount),
		Range:             decimal.NewFromFloat(v.Range),
		MaxLines:          v.MaxLines,
		RunTime:           v.RunTime,
		CheckInterval:     v.CheckInterval,
		OrderInterval:     v.OrderInterval,
		OrderRetry:        v.OrderRetry,
		RetryBackoff:      v.RetryBackoff,
		MakerFeeRate:      decimal.NewFromFloat(v.MakerFee),
		TakerFeeRate:      decimal.NewFromFloat(v.TakerFee),
		TradeHistoryCount: v.TradeHistoryCount,
	}
}

// PaperBalances returns the paper account seed balances as decimals.
func (v *Config) PaperBalances() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(v.Paper.Balances))
	for asset, amount := range v.Paper.Balances {
		m[asset] = decimal.NewFromFloat(amount)
	}
	return m
}
