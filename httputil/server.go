// Copyright (c) 2023 BVK Chaitanya

package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bvk/pairbot/ctxutil"
	"github.com/google/uuid"
)

// Server is an http server whose handlers can be added after it has started.
type Server struct {
	cg ctxutil.CloseGroup

	opts Options

	mu         sync.Mutex
	servers    []*http.Server
	handlerMap map[string]http.Handler

	mux atomic.Pointer[http.ServeMux]
}

func New(opts *Options) (*Server, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	s := &Server{
		opts:       *opts,
		handlerMap: make(map[string]http.Handler),
	}
	s.updateHandlerMux()
	return s, nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	for _, svr := range servers {
		svr.Close()
	}
	s.cg.Close()
	return nil
}

// StartTCP serves on the given host:port address and returns after the
// server has answered a probe request. Returns the bound address, which
// differs from the input when the port is zero.
func (s *Server) StartTCP(ctx context.Context, address string) (_ net.Addr, status error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	defer func() {
		if status != nil {
			l.Close()
		}
	}()

	probePath := "/" + uuid.NewString()
	s.AddHandler(probePath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer s.RemoveHandler(probePath)

	server := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context {
			return s.cg.Context()
		},
	}
	s.cg.Go(context.Background(), func(ctx context.Context) {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "addr", l.Addr(), "err", err)
		}
	})
	defer func() {
		if status != nil {
			server.Close()
		}
	}()

	if err := s.probe(ctx, l.Addr().String(), probePath); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.servers = append(s.servers, server)
	s.mu.Unlock()
	return l.Addr(), nil
}

func (s *Server) probe(ctx context.Context, host, probePath string) error {
	c := http.Client{Timeout: s.opts.ProbeTimeout}
	u := url.URL{Scheme: "http", Host: host, Path: probePath}

	tctx, tcancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	defer tcancel()

	for {
		r, err := http.NewRequestWithContext(tctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := c.Do(r)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if err := ctxutil.Sleep(tctx, s.opts.ProbeInterval); err != nil {
			return fmt.Errorf("http server at %s did not answer the probe: %w", host, err)
		}
	}
}

func (s *Server) AddHandler(pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlerMap[pattern] = handler
	s.updateHandlerMux()
}

func (s *Server) RemoveHandler(pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlerMap[pattern]; !ok {
		return false
	}
	delete(s.handlerMap, pattern)
	s.updateHandlerMux()
	return true
}

func (s *Server) updateHandlerMux() {
	m := http.NewServeMux()
	for k, v := range s.handlerMap {
		m.Handle(k, v)
	}
	s.mux.Store(m)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.Load().ServeHTTP(w, r)
}

// JSONHandler serves the value returned by fn as indented JSON.
func JSONHandler[T any](fn func() T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(fn()); err != nil {
			slog.Warn("could not write json response", "path", r.URL.Path, "err", err)
		}
	})
}

// PIDHandler serves the process id as plain text.
func PIDHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%d\n", os.Getpid())
	})
}
