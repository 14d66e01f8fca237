// Package server implements the fleetwatch protocol server.
//
// Each connection carries exactly one exchange: the client writes a frame
// and half-closes, the server decodes it, dispatches it and writes a
// plain-text response (or nothing, for silent drops), then closes.
// Connections are handled concurrently by a bounded worker pool; the
// registry and rate-limit ledger serialize their own mutations.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/fleetwatch/internal/config"
	fwerrors "github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/rileyhilliard/fleetwatch/internal/logger"
	"github.com/rileyhilliard/fleetwatch/internal/protocol"
	"github.com/rileyhilliard/fleetwatch/internal/ratelimit"
	"github.com/rileyhilliard/fleetwatch/internal/registry"
	"github.com/rileyhilliard/fleetwatch/internal/store"
	"golang.org/x/sync/errgroup"
)

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Listen           string
	Workers          int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MinInputInterval time.Duration
	Policy           ratelimit.Policy

	Logger  logger.Logger
	Metrics *Metrics
	// Clock supplies the server's notion of now. Ingested samples are
	// stamped with it.
	Clock func() time.Time
	// NewID generates candidate device ids for SETUP.
	NewID func() string
}

// OptionsFromSettings maps settings onto Options.
func OptionsFromSettings(s config.ServerSettings) Options {
	policy := ratelimit.ChargeAfterRegistration
	if s.ChargeUnregistered {
		policy = ratelimit.ChargeBeforeRegistration
	}
	return Options{
		Listen:           s.Listen,
		Workers:          s.Workers,
		ReadTimeout:      s.ReadTimeout,
		WriteTimeout:     s.WriteTimeout,
		MinInputInterval: s.MinInputInterval,
		Policy:           policy,
	}
}

func (o *Options) applyDefaults() {
	d := config.DefaultSettings().Server
	if o.Listen == "" {
		o.Listen = d.Listen
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.Noop()
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.NewString() }
	}
}

// Server owns the listener and the request handlers.
type Server struct {
	opts     Options
	store    store.Store
	registry *registry.Registry
	ledger   *ratelimit.Ledger
	log      logger.Logger
	metrics  *Metrics

	mu        sync.Mutex
	addr      net.Addr
	stop      context.CancelFunc
	ready     chan struct{}
	readyOnce sync.Once
}

// New builds a server over st and reg. MinInputInterval is used as given,
// so zero disables throttling.
func New(st store.Store, reg *registry.Registry, opts Options) *Server {
	opts.applyDefaults()
	return &Server{
		opts:     opts,
		store:    st,
		registry: reg,
		ledger:   ratelimit.New(opts.MinInputInterval, opts.Policy),
		log:      opts.Logger,
		metrics:  opts.Metrics,
		ready:    make(chan struct{}),
	}
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Prepare runs first-run reconciliation and warns when no admin exists.
func (s *Server) Prepare(ctx context.Context) error {
	if len(s.registry.Snapshot().AdminIDs) == 0 {
		s.log.Warn("no admin devices found; add one with 'fleetwatch admin-add' to manage the server remotely")
	}

	ids, err := s.store.DistinctDeviceIDs(ctx)
	if err != nil {
		return err
	}
	ran, err := s.registry.Reconcile(ids)
	if err != nil {
		return err
	}
	if ran {
		s.log.Info("registry reconciled with %d device(s) from the store", len(ids))
	}
	return nil
}

// ListenAndServe binds the configured address and serves until ctx is
// cancelled or an EXIT command arrives.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Listen)
	if err != nil {
		return fwerrors.WrapWithCode(err, fwerrors.ErrNetwork,
			"Cannot listen on "+s.opts.Listen,
			"Is another fleetwatch server running? Change server.listen in fleetwatch.yaml")
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or EXIT is
// received, then waits for in-flight connections to finish. A stopped
// Server may Serve again on a new listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.addr = ln.Addr()
	s.stop = cancel
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("listening on %s", ln.Addr())

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.log.Error("accept failed: %v; retrying in %v", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		g.Go(func() error {
			s.handleConn(ctx, conn)
			return nil
		})
	}

	g.Wait()
	s.log.Info("server stopped")
	return nil
}

// Addr blocks until Serve has a listener, then returns its address.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop asks a running Serve to return.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.metrics.Connections.Inc()
	peer := conn.RemoteAddr()

	conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	raw, err := protocol.ReadFrame(conn)
	if err != nil {
		// A sender that never half-closes still gets served once the
		// deadline passes, as long as it wrote something.
		var ne net.Error
		if !(errors.As(err, &ne) && ne.Timeout() && len(raw) > 0) {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				s.metrics.DecodeErrors.Inc()
			}
			s.log.Warn("read from %s failed: %v", peer, err)
			return
		}
	}

	frame, err := protocol.Decode(raw)
	if err != nil {
		s.metrics.DecodeErrors.Inc()
		s.log.Warn("dropping frame from %s: %v", peer, err)
		return
	}
	s.metrics.Commands.WithLabelValues(frame.Command.String()).Inc()

	res := s.Dispatch(ctx, frame, peer)
	if !res.Respond {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if _, err := conn.Write([]byte(res.Body)); err != nil {
		s.log.Warn("write to %s failed: %v", peer, err)
	}
	if res.Stop {
		s.log.Info("EXIT received from %s", peer)
		s.Stop()
	}
}
