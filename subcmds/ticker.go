// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/pairbot/config"
	"github.com/visvasity/cli"
)

type Ticker struct {
	config.Flags

	fset *flag.FlagSet
}

func (c *Ticker) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	c.fset = flag.NewFlagSet("ticker", flag.ContinueOnError)
	c.Flags.Register(c.fset)
	return "ticker", c.fset, cli.CmdFunc(c.run)
}

func (c *Ticker) Purpose() string {
	return "Prints the best bid and ask from the configured price source"
}

func (c *Ticker) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	cfg, err := c.Flags.Load(c.fset)
	if err != nil {
		return err
	}
	prices, err := newPriceSource(cfg)
	if err != nil {
		return err
	}
	ticker, err := prices.GetTicker(ctx, cfg.Pair)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout(ctx), "%s %s\n", cfg.Pair, ticker)
	return nil
}
