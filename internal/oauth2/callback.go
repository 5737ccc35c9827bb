package oauth2

import (
	"context"
	_ "embed"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/common/logging"
)

//go:embed templates/callback_success.html
var callbackSuccessPage []byte

const (
	// connDeadline bounds the whole lifetime of the single accepted connection.
	connDeadline      = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// CallbackResult is what the listener hands off after a valid redirect.
type CallbackResult struct {
	Code  string
	State string
}

// CallbackListener is a single-use loopback listener. It accepts exactly one
// connection, answers its first request and stops.
type CallbackListener struct {
	addr    string
	path    string
	timeout time.Duration
	logger  logging.Logger

	listener net.Listener
}

// NewCallbackListener returns an unbound listener for addr. A zero timeout
// waits for a connection until ctx is cancelled.
func NewCallbackListener(addr, path string, timeout time.Duration, logger logging.Logger) *CallbackListener {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &CallbackListener{
		addr:    addr,
		path:    path,
		timeout: timeout,
		logger:  logger.WithFields(logging.String("component", "callback_listener")),
	}
}

// Listen binds the loopback address. It returns a bind error while a previous
// flow's listener still holds the port.
func (l *CallbackListener) Listen() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return errors.BindError(l.addr, err)
	}
	l.listener = ln
	l.logger.Info("Callback listener bound", logging.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (l *CallbackListener) Addr() string {
	if l.listener != nil {
		return l.listener.Addr().String()
	}
	return l.addr
}

// Serve accepts one connection and answers its first request. A request to
// the callback path carrying both code and state is answered with the success
// page and delivered on handoff; anything else gets a 404 and no delivery.
// handoff receives at most one value and is always closed when Serve returns,
// so a receiver seeing a closed channel knows no callback arrived.
func (l *CallbackListener) Serve(ctx context.Context, handoff chan<- CallbackResult) {
	defer close(handoff)

	if l.listener == nil {
		l.logger.Error("Serve called before Listen", nil)
		return
	}

	conn, err := l.acceptOne(ctx)
	if err != nil {
		l.logger.Warn("No callback connection accepted", logging.Err(err))
		return
	}

	result, ok := l.serveConn(conn)
	if !ok {
		return
	}

	select {
	case handoff <- result:
	case <-ctx.Done():
		l.logger.Warn("Callback hand-off abandoned", logging.Err(ctx.Err()))
	}
}

// acceptOne waits for the first connection and then closes the listening
// socket so no second connection is ever accepted.
func (l *CallbackListener) acceptOne(ctx context.Context) (net.Conn, error) {
	acceptCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		acceptCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	stop := context.AfterFunc(acceptCtx, func() {
		_ = l.listener.Close()
	})
	conn, err := l.listener.Accept()
	stop()
	_ = l.listener.Close()

	if err != nil {
		if acceptCtx.Err() != nil {
			if stderrors.Is(acceptCtx.Err(), context.DeadlineExceeded) {
				return nil, errors.TimeoutError("callback accept")
			}
			return nil, acceptCtx.Err()
		}
		return nil, err
	}
	return conn, nil
}

// serveConn runs an http.Server over the single connection until the server
// closes it after the first response.
func (l *CallbackListener) serveConn(conn net.Conn) (CallbackResult, bool) {
	_ = conn.SetDeadline(time.Now().Add(connDeadline))

	var (
		mu       sync.Mutex
		result   CallbackResult
		received bool
	)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)

		if r.URL.Path != l.path {
			l.logger.Warn("Callback request to unexpected path", logging.String("path", r.URL.Path))
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query()
		if providerErr := query.Get("error"); providerErr != "" {
			l.logger.Warn("Provider redirected with an error",
				logging.String("error", providerErr),
				logging.String("error_description", query.Get("error_description")))
		}

		code, state := query.Get("code"), query.Get("state")
		if code == "" || state == "" {
			l.logger.Warn("Callback request missing parameters",
				logging.Bool("has_code", code != ""),
				logging.Bool("has_state", state != ""))
			http.NotFound(w, r)
			return
		}

		mu.Lock()
		result = CallbackResult{Code: code, State: state}
		received = true
		mu.Unlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(callbackSuccessPage)
		l.logger.Info("Callback received")
	})

	tracked := &trackedConn{Conn: conn, closed: make(chan struct{})}
	ln := newOneShotListener(tracked)

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	server.SetKeepAlivesEnabled(false)

	go func() {
		_ = server.Serve(ln)
	}()

	<-tracked.closed
	_ = server.Close()

	mu.Lock()
	defer mu.Unlock()
	return result, received
}

func setSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; script-src 'unsafe-inline'")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
}

// oneShotListener yields a single connection, then blocks until closed.
type oneShotListener struct {
	conn   net.Conn
	once   sync.Once
	done   chan struct{}
	closer sync.Once
}

func newOneShotListener(conn net.Conn) *oneShotListener {
	return &oneShotListener{conn: conn, done: make(chan struct{})}
}

func (l *oneShotListener) Accept() (net.Conn, error) {
	var conn net.Conn
	l.once.Do(func() { conn = l.conn })
	if conn != nil {
		return conn, nil
	}
	<-l.done
	return nil, net.ErrClosed
}

func (l *oneShotListener) Close() error {
	l.closer.Do(func() { close(l.done) })
	return nil
}

func (l *oneShotListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// trackedConn signals when the server has finished with the connection.
type trackedConn struct {
	net.Conn
	once   sync.Once
	closed chan struct{}
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { close(c.closed) })
	return err
}
