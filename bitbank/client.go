// Copyright (c) 2023 BVK Chaitanya

package bitbank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/bvk/pairbot/ctxutil"
	"github.com/bvk/pairbot/exchange"
	"golang.org/x/time/rate"
)

// Client reads public market data from the bitbank REST api.
type Client struct {
	opts Options

	baseURL *url.URL

	client *http.Client

	limiter *rate.Limiter
}

func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, fmt.Errorf("invalid bitbank options: %w", err)
	}
	baseURL, err := url.Parse(opts.PublicURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		opts:    *opts,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: opts.HttpClientTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
	return c, nil
}

// GetTicker returns the current best bid, best ask and last price.
func (c *Client) GetTicker(ctx context.Context, pair string) (*exchange.Ticker, error) {
	if _, _, err := exchange.SplitPair(pair); err != nil {
		return nil, err
	}
	u := c.baseURL.JoinPath(path.Join(pair, "ticker"))

	resp := new(Response[json.RawMessage])
	if err := c.getJSON(ctx, u, resp); err != nil {
		return nil, fmt.Errorf("could not fetch ticker for %s: %w", pair, err)
	}
	if resp.Success != 1 {
		var e ErrorData
		json.Unmarshal(resp.Data, &e)
		return nil, fmt.Errorf("bitbank ticker request failed with error code %d", e.Code)
	}
	var data TickerData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("could not decode ticker data: %w", err)
	}
	ticker := &exchange.Ticker{
		Buy:  data.Buy,
		Sell: data.Sell,
		Last: data.Last,
	}
	return ticker, nil
}

func (c *Client) getJSON(ctx context.Context, u *url.URL, result any) error {
	urlStr := u.String()
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			slog.Error("could not create http get request with context", "url", urlStr, "err", err)
			return err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		at := time.Now()
		resp, err := c.client.Do(req)
		latency := time.Since(at)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Error("could not do http client request", "url", urlStr, "err", err)
			}
			return err
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusOK {
			slog.Debug("bitbank GET", "url", urlStr, "latency", latency, "response", string(data))
			if err := json.NewDecoder(bytes.NewReader(data)).Decode(result); err != nil {
				slog.Error("could not decode response to json", "url", urlStr, "err", err)
				return err
			}
			return nil
		}

		retryable := resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusTooManyRequests
		if !retryable || attempt >= c.opts.MaxRetries {
			slog.Error("http GET is unsuccessful", "status", resp.StatusCode, "url", urlStr, "attempt", attempt)
			return fmt.Errorf("http GET returned %d", resp.StatusCode)
		}

		delay := c.opts.RetryInterval
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
				delay = time.Duration(secs) * time.Second
			}
		}
		slog.Warn("get request failed with a retryable status (retrying after timeout)", "status", resp.StatusCode, "url", urlStr, "delay", delay)
		if err := ctxutil.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
