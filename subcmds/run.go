// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bvk/pairbot/config"
	"github.com/bvk/pairbot/ctxutil"
	"github.com/bvk/pairbot/httputil"
	"github.com/bvk/pairbot/kafkapub"
	"github.com/bvk/pairbot/notify"
	"github.com/bvk/pairbot/pushover"
	"github.com/bvk/pairbot/scheduler"
	"github.com/bvk/pairbot/telegram"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/visvasity/cli"
	"github.com/visvasity/topic"
	"golang.org/x/term"
)

type Run struct {
	config.Flags

	fset *flag.FlagSet

	debug  bool
	format string
	runID  string

	drainTimeout time.Duration
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	c.fset = flag.NewFlagSet("run", flag.ContinueOnError)
	c.Flags.Register(c.fset)
	c.fset.BoolVar(&c.debug, "debug", false, "when true, debug messages are logged")
	c.fset.StringVar(&c.format, "format", "", "output format for line results (text or json); defaults to text on a terminal")
	c.fset.StringVar(&c.runID, "run-id", "", "seed for client order ids; a random seed is used when empty")
	c.fset.DurationVar(&c.drainTimeout, "drain-timeout", 5*time.Second, "max time to wait for pending result output at exit")
	return "run", c.fset, cli.CmdFunc(c.run)
}

func (c *Run) Purpose() string {
	return "Runs paired buy/sell order lines against the paper venue"
}

func (c *Run) outputJSON() bool {
	switch strings.ToLower(c.format) {
	case "json":
		return true
	case "text":
		return false
	}
	return !term.IsTerminal(int(os.Stdout.Fd()))
}

func (c *Run) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := c.Flags.Load(c.fset)
	if err != nil {
		return err
	}
	defer setupLogging(cfg.LogDir, c.debug)()

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
		return fmt.Errorf("could not fetch balances: %w", err)
	}
	for _, b := range balances {
		slog.Info("paper account balance", "asset", b.Asset, "onhand", b.OnhandAmount)
	}

	opts := cfg.SchedulerOptions()
	opts.RunID = c.runID
	sched, err := scheduler.New(venue, opts)
	if err != nil {
		return err
	}
	defer sched.Close()

	notifier, closeNotifier, err := newNotifier(ctx, cfg, db, sched)
	if err != nil {
		return err
	}
	defer closeNotifier()

	if len(cfg.ListenAddr) != 0 {
		closeServer, err := startServer(ctx, cfg.ListenAddr, db, sched)
		if err != nil {
			return err
		}
		defer closeServer()
	}

	var cg ctxutil.CloseGroup
	defer cg.Close()

	var nprinted atomic.Uint64
	printer, err := sched.Results()
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	asJSON := c.outputJSON()
	cg.Go(ctx, func(ctx context.Context) {
		printResults(ctx, stdout, asJSON, printer, &nprinted)
	})

	if !notifier.IsEmpty() {
		forwarder, err := sched.Results()
		if err != nil {
			return err
		}
		cg.Go(ctx, func(ctx context.Context) {
			if err := notifier.Forward(ctx, forwarder); err != nil && !errors.Is(err, os.ErrClosed) {
				slog.Warn("stopped forwarding line results", "err", err)
			}
		})
	}

	summary, err := sched.Run(ctx)
	if err != nil {
		if errors.Is(err, scheduler.ErrInsufficientBalance) {
			fmt.Fprintf(stdout, "not enough balance to start: %v\n", err)
		}
		return err
	}

	// Give the printer a chance to emit every accounted line before the
	// summary.
	deadline := time.Now().Add(c.drainTimeout)
	for nprinted.Load() < summary.Completed && time.Now().Before(deadline) {
		if err := ctxutil.Sleep(ctx, 10*time.Millisecond); err != nil {
			break
		}
	}

	if asJSON {
		printJSON(stdout, map[string]any{"summary": summary})
	} else {
		fmt.Fprintln(stdout, summary)
	}
	notifier.NotifySummary(context.WithoutCancel(ctx), summary)
	return nil
}

func printResults(ctx context.Context, w io.Writer, asJSON bool, receiver *topic.Receiver[*scheduler.Result], count *atomic.Uint64) {
	stopf := context.AfterFunc(ctx, receiver.Close)
	defer stopf()

	for {
		r, err := receiver.Receive()
		if err != nil {
			return
		}
		if asJSON {
			printJSON(w, map[string]any{"result": r})
		} else {
			fmt.Fprintf(w, "%s %s\n", r.FinishedAt.Format(time.DateTime), r)
		}
		count.Add(1)
	}
}

func printJSON(w io.Writer, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("could not write json output", "err", err)
	}
}

func newNotifier(ctx context.Context, cfg *config.Config, db kv.Database, sched *scheduler.Scheduler) (*notify.Notifier, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	n := new(notify.Notifier)
	if len(cfg.SecretsFile) != 0 {
		secrets, err := config.SecretsFromFile(cfg.SecretsFile)
		if err != nil {
			return nil, nil, err
		}
		if secrets.Telegram != nil {
			tc, err := telegram.New(ctx, db, secrets.Telegram)
			if err != nil {
				return nil, nil, err
			}
			closers = append(closers, func() { tc.Close() })

			status := func(ctx context.Context, args []string) error {
				s := sched.Status()
				fmt.Fprintf(cli.Stdout(ctx), "%s: admitted %d completed %d free slots %d/%d total profit %s\n",
					s.Pair, s.Admitted, s.Completed, s.AvailableSlots, s.MaxLines, s.TotalProfit.StringFixed(4))
				for _, l := range s.Lines {
					fmt.Fprintf(cli.Stdout(ctx), "line %d: %s buy %s sell %s\n", l.Index, l.State, l.BuyPrice, l.SellPrice)
				}
				return nil
			}
			if err := tc.AddCommand(ctx, "status", "Prints the order lines status", status); err != nil {
				closeAll()
				return nil, nil, err
			}
			n.AddSender(tc)
		}
		if secrets.Pushover != nil {
			pc, err := pushover.New(secrets.Pushover)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			n.AddSender(pc)
		}
	}

	if len(cfg.Kafka.Brokers) != 0 {
		kp, err := kafkapub.New(&kafkapub.Options{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := kp.Close(); err != nil {
				slog.Warn("could not close kafka publisher (ignored)", "err", err)
			}
		})
		n.AddPublisher(kp)
	}
	return n, closeAll, nil
}

func startServer(ctx context.Context, address string, db kv.Database, sched *scheduler.Scheduler) (func(), error) {
	s, err := httputil.New(nil /* opts */)
	if err != nil {
		return nil, err
	}
	s.AddHandler("/pid", httputil.PIDHandler())
	s.AddHandler("/status", httputil.JSONHandler(sched.Status))
	s.AddHandler("/metrics", promhttp.Handler())
	s.AddHandler("/db/", http.StripPrefix("/db", kvhttp.Handler(db)))

	addr, err := s.StartTCP(ctx, address)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not start http server on %s: %w", address, err)
	}
	slog.Info("started status web server", "address", addr)
	return func() { s.Close() }, nil
}
