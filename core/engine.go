package core

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/Ceapa-git/anidle/core/http"
	"github.com/Ceapa-git/anidle/core/middleware"
	"github.com/Ceapa-git/anidle/core/observability"
	"github.com/Ceapa-git/anidle/core/poller"
	"github.com/Ceapa-git/anidle/core/pools"
	"github.com/Ceapa-git/anidle/core/router"
)

// Options configures an Engine.
type Options struct {
	Port   int
	Debug  bool
	Routes *router.Tree

	// Logger receives lifecycle and per-request lines. The zero value
	// discards everything.
	Logger zerolog.Logger

	// Monitor collects per-route statistics. A fresh one is created when nil.
	Monitor *observability.Monitor

	// Workers > 0 serves connections on a worker pool of that size.
	// Zero serves each connection inline on the accept goroutine.
	Workers int

	// MaxRequestSize caps the bytes read per request.
	// Defaults to DefaultMaxRequestSize.
	MaxRequestSize int

	// ReadTimeout sets SO_RCVTIMEO on accepted connections. Zero leaves
	// reads unbounded.
	ReadTimeout time.Duration

	// Middleware wraps every matched handler, inside panic recovery.
	Middleware []middleware.Middleware

	// LegacyLineDecoding decodes the whole request line before splitting
	// the target. See http.WithLineDecoding.
	LegacyLineDecoding bool
}

// Engine owns the listening socket and the accept loop.
type Engine struct {
	opts      Options
	log       zerolog.Logger
	routes    *router.Tree
	monitor   *observability.Monitor
	buffers   *pools.BytePool
	workers   *pools.WorkerPool
	parseOpts []http.ParseOption

	// base context handed to requests; never canceled by shutdown
	baseCtx context.Context

	// accessed only from the accept goroutine
	entropy *ulid.MonotonicEntropy
	poller  poller.Poller
	accept  func(fd int) (int, unix.Sockaddr, error)

	mu      sync.Mutex
	cond    *sync.Cond
	running bool
	started bool
	closed  bool
	lfd     int
	port    int

	done chan struct{}
	// closed by Shutdown to cut an accept back-off short
	stop chan struct{}
}

// NewEngine creates an engine. Nothing is bound until Start.
func NewEngine(opts Options) *Engine {
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = DefaultMaxRequestSize
	}
	if opts.Routes == nil {
		opts.Routes = router.MustNew(router.Route{})
	}
	if opts.Monitor == nil {
		opts.Monitor = observability.NewMonitor()
	}

	e := &Engine{
		opts:    opts,
		log:     opts.Logger,
		monitor: opts.Monitor,
		buffers: pools.NewBytePool(),
		baseCtx: context.Background(),
		entropy: ulid.Monotonic(rand.Reader, 0),
		accept:  unix.Accept,
		lfd:     -1,
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	pipeline := middleware.NewPipeline(middleware.Recovery())
	for _, mw := range opts.Middleware {
		pipeline.Use(mw)
	}
	e.routes = opts.Routes.Wrap(pipeline.Then)
	if opts.LegacyLineDecoding {
		e.parseOpts = append(e.parseOpts, http.WithLineDecoding())
	}

	return e
}

// Monitor returns the engine's request monitor
func (e *Engine) Monitor() *observability.Monitor {
	return e.monitor
}

// Port returns the bound port, or 0 before Start.
func (e *Engine) Port() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.port
}

// Start validates the options, binds and listens on every IPv4 address,
// and starts the accept loop. It does not block.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrServerClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}

	if e.opts.Port < MinPort || e.opts.Port > MaxPort {
		return &SetupError{Op: "validate", Err: fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidPort, e.opts.Port, MinPort, MaxPort)}
	}

	fd, err := listen(e.opts.Port)
	if err != nil {
		return err
	}

	p, err := poller.NewPoller()
	if err != nil {
		unix.Close(fd)
		return &SetupError{Op: "poller", Err: err}
	}
	if err := p.Add(fd); err != nil {
		p.Close()
		unix.Close(fd)
		return &SetupError{Op: "poller", Err: err}
	}

	if e.opts.Workers > 0 {
		e.workers = pools.NewWorkerPool(e.opts.Workers)
	}

	e.lfd = fd
	e.port = e.opts.Port
	e.poller = p
	e.running = true
	e.started = true

	e.log.Info().Int("port", e.port).Int("workers", e.opts.Workers).Msg("server is listening")
	if e.opts.Debug {
		for _, route := range e.routes.Routes() {
			e.log.Debug().Str("route", route).Msg("route registered")
		}
	}

	go e.acceptLoop()
	return nil
}

// listen creates the non-blocking listening socket.
func listen(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, &SetupError{Op: "socket", Err: err}
	}
	unix.CloseOnExec(fd)

	fail := func(op string, err error) (int, error) {
		unix.Close(fd)
		return -1, &SetupError{Op: op, Err: err}
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		return fail("listen", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fail("nonblock", err)
	}
	return fd, nil
}

// Wait blocks until Shutdown is called, then joins the accept loop and
// the worker pool.
func (e *Engine) Wait() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	for e.running {
		e.cond.Wait()
	}
	e.mu.Unlock()

	<-e.done
	if e.workers != nil {
		e.workers.Close()
	}
	e.log.Info().Uint64("requests", e.monitor.Total()).Msg("server stopped")
}

// Run is Start followed by Wait.
func (e *Engine) Run() error {
	if err := e.Start(); err != nil {
		return err
	}
	e.Wait()
	return nil
}

// Shutdown stops the accept loop, closes the listening socket and wakes
// Wait. It is safe to call more than once and from any goroutine.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if !e.running {
		return
	}
	e.running = false
	close(e.stop)
	if e.lfd >= 0 {
		if err := unix.Close(e.lfd); err != nil {
			e.log.Error().Err(err).Msg("close listener")
		}
		e.lfd = -1
	}
	e.cond.Broadcast()
	e.log.Info().Msg("shutdown requested")
}

// CreateServer runs a server until ctx is canceled. It returns a
// SetupError if the listener cannot be created.
func CreateServer(ctx context.Context, opts Options) error {
	e := NewEngine(opts)
	e.baseCtx = context.WithoutCancel(ctx)
	if err := e.Start(); err != nil {
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			e.Shutdown()
		case <-e.done:
		}
	}()

	e.Wait()
	return nil
}

func (e *Engine) acceptLoop() {
	defer close(e.done)
	defer e.poller.Close()

	failures := 0
	for {
		e.mu.Lock()
		if !e.running {
			e.mu.Unlock()
			return
		}
		nfd, sa, err := e.accept(e.lfd)
		e.mu.Unlock()

		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EINTR, unix.ECONNABORTED:
				failures = 0
				e.backoff()
			default:
				// EMFILE, ENFILE, ENOBUFS and the like leave the pending
				// connection queued, so the listener stays readable.
				failures++
				e.log.Error().Err(err).Int("consecutive", failures).Msg("accept failed")
				e.sleep(acceptBackoff)
			}
			continue
		}
		failures = 0

		unix.CloseOnExec(nfd)
		e.dispatch(nfd, peerAddress(sa))
	}
}

// backoff parks until the listener is readable or acceptBackoff elapses.
func (e *Engine) backoff() {
	if _, err := e.poller.Wait(int(acceptBackoff / time.Millisecond)); err != nil {
		e.log.Error().Err(err).Msg("poller wait failed")
		e.sleep(acceptBackoff)
	}
}

// sleep waits for d or until Shutdown, whichever comes first.
func (e *Engine) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-e.stop:
	}
}

func (e *Engine) dispatch(fd int, peer string) {
	c := &conn{
		fd:    fd,
		peer:  peer,
		id:    ulid.MustNew(ulid.Now(), e.entropy),
		start: time.Now(),
	}

	if e.workers == nil {
		e.serve(c)
		return
	}
	if !e.workers.Submit(func() { e.serve(c) }) {
		unix.Close(fd)
	}
}
