// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/pairbot/config"
	"github.com/visvasity/cli"
)

type Balance struct {
	config.Flags

	fset *flag.FlagSet
}

func (c *Balance) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	c.fset = flag.NewFlagSet("balance", flag.ContinueOnError)
	c.Flags.Register(c.fset)
	return "balance", c.fset, cli.CmdFunc(c.run)
}

func (c *Balance) Purpose() string {
	return "Prints the paper account balances"
}

func (c *Balance) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	cfg, err := c.Flags.Load(c.fset)
	if err != nil {
		return err
	}
	db, closeDB, err := openDB(ctx, cfg.DataDir)
	if err != nil {
		return err
	}
	defer closeDB()

	venue, err := openVenue(ctx, cfg, db)
	if err != nil {
		return err
	}
	balances, err := venue.GetBalances(ctx)
	if err != nil {
		return err
	}
	printBalances(cli.Stdout(ctx), balances)
	return nil
}
