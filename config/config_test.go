// Copyright (c) 2023 BVK Chaitanya

package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Check(); err != nil {
		t.Fatal(err)
	}
	if cfg.RunTime != time.Hour {
		t.Fatalf("want 1h run time, got %s", cfg.RunTime)
	}
	opts := cfg.SchedulerOptions()
	if s := opts.LineAmount().String(); s != "100" {
		t.Fatalf("want 100, got %s", s)
	}
	if s := opts.MakerFeeRate.String(); s != "-0.0005" {
		t.Fatalf("want -0.0005, got %s", s)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "pairbot.yaml")
	data := []byte(`
pair: btc_jpy
run_time: 90s
max_lines: 8
paper:
  price_source: random-walk
  start_price: 250
kafka:
  brokers: [localhost:9092]
`)
	if err := os.WriteFile(fpath, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAIRBOT_MAX_LINES", "2")
	t.Setenv("PAIRBOT_KAFKA_TOPIC", "lines")

	cfg, err := Load(fpath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pair != "btc_jpy" {
		t.Fatalf("want btc_jpy, got %s", cfg.Pair)
	}
	if cfg.RunTime != 90*time.Second {
		t.Fatalf("want 90s, got %s", cfg.RunTime)
	}
	if cfg.MaxLines != 2 {
		t.Fatalf("want env override 2, got %d", cfg.MaxLines)
	}
	if cfg.Paper.PriceSource != PriceRandomWalk || cfg.Paper.StartPrice != 250 {
		t.Fatalf("want random walk at 250, got %+v", cfg.Paper)
	}
	if cfg.Kafka.Topic != "lines" || len(cfg.Kafka.Brokers) != 1 {
		t.Fatalf("want kafka settings, got %+v", cfg.Kafka)
	}
	if cfg.CheckInterval != 3*time.Second {
		t.Fatalf("want default check interval, got %s", cfg.CheckInterval)
	}
	if err := cfg.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestFlagsOverride(t *testing.T) {
	t.Setenv("PAIRBOT_PAIR", "eth_jpy")

	var flags Flags
	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	flags.Register(fset)
	if err := fset.Parse([]string{"-max-lines=3", "-range=0.001"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := flags.Load(fset)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxLines != 3 || cfg.Range != 0.001 {
		t.Fatalf("want flag overrides, got %d %v", cfg.MaxLines, cfg.Range)
	}
	// Unset flags must not clobber the environment.
	if cfg.Pair != "eth_jpy" {
		t.Fatalf("want eth_jpy from env, got %s", cfg.Pair)
	}
}

func TestCheck(t *testing.T) {
	mods := []func(*Config){
		func(c *Config) { c.Pair = "xrp" },
		func(c *Config) { c.TradeAmount = 0 },
		func(c *Config) { c.Range = 1 },
		func(c *Config) { c.MaxLines = 0 },
		func(c *Config) { c.OrderRetry = 0 },
		func(c *Config) { c.Paper.PriceSource = "coinbase" },
		func(c *Config) { c.Paper.Balances = map[string]float64{"xrp": -1} },
		func(c *Config) { c.Kafka = Kafka{Brokers: []string{"k:9092"}} },
	}
	for i, mod := range mods {
		cfg := Default()
		mod(cfg)
		if err := cfg.Check(); !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("%d: want ErrInvalid, got %v", i, err)
		}
	}
}

func TestSecretsFromFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "secrets.json")
	data := []byte(`{"pushover": {"application_key": "app", "user_key": "user"}}`)
	if err := os.WriteFile(fpath, data, 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := SecretsFromFile(fpath)
	if err != nil {
		t.Fatal(err)
	}
	if s.Telegram != nil || s.Pushover == nil {
		t.Fatalf("want pushover keys only, got %+v", s)
	}
}
