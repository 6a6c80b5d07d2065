package gopher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nao1215/gopherscan/internal/tor"
	"golang.org/x/net/proxy"
)

// Default request limits.
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultReadTimeout     = 10 * time.Second
	DefaultMaxResponseSize = 10 * 1024 * 1024 // 10MiB

	// readChunkSize is the size of a single read from the connection.
	readChunkSize = 64 * 1024
)

var (
	errOnionWithoutProxy = errors.New("onion address requires a Tor proxy")
	errInvalidOnion      = errors.New("invalid v3 onion address")
)

// Client fetches Gopher resources. It opens a new connection per request and
// holds no per-request state, so one Client can serve a whole crawl.
type Client struct {
	// dialer opens TCP connections, directly or through a SOCKS5 proxy.
	dialer proxy.Dialer

	// proxied is true when dialer routes through a proxy. Onion hosts are
	// only dialed in that case.
	proxied bool

	connectTimeout  time.Duration
	readTimeout     time.Duration
	maxResponseSize int64

	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithConnectTimeout bounds how long establishing a connection may take.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithReadTimeout bounds how long a single read may wait for data.
func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// WithMaxResponseSize sets the response size ceiling in bytes.
func WithMaxResponseSize(size int64) ClientOption {
	return func(c *Client) {
		c.maxResponseSize = size
	}
}

// WithProxyDialer routes all connections through the given dialer, usually
// a SOCKS5 dialer pointing at Tor.
func WithProxyDialer(d proxy.Dialer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
			c.proxied = true
		}
	}
}

// WithClientLogger sets the logger used for request lines.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client with the default limits and a direct dialer.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		dialer:          &net.Dialer{},
		connectTimeout:  DefaultConnectTimeout,
		readTimeout:     DefaultReadTimeout,
		maxResponseSize: DefaultMaxResponseSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Fetch sends selector to host:port and returns the response with one
// trailing terminator removed. Any failure returns a *FetchError and no data.
func (c *Client) Fetch(ctx context.Context, host string, port int, selector string) ([]byte, error) {
	c.logger.Info("requesting selector",
		"selector", DisplaySelector(selector),
		"host", host,
		"port", port,
	)

	fail := func(kind FetchErrorKind, err error) error {
		return &FetchError{Kind: kind, Host: host, Port: port, Selector: selector, Err: err}
	}

	if err := c.checkHost(host); err != nil {
		return nil, fail(KindResolve, err)
	}

	conn, err := c.dial(ctx, net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fail(classifyDialError(ctx, err), err)
	}
	defer conn.Close()

	// Unblock reads and writes as soon as the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close() //nolint:errcheck // closing to interrupt I/O
	})
	defer stop()

	if err := conn.SetWriteDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, fail(KindConnect, err)
	}
	if _, err := conn.Write(encodeRequest(selector)); err != nil {
		return nil, fail(classifyIOError(ctx, err), err)
	}

	data, err := c.readAll(conn)
	if err != nil {
		if errors.Is(err, ErrSizeLimit) {
			return nil, fail(KindSizeLimit, nil)
		}
		return nil, fail(classifyIOError(ctx, err), err)
	}

	return StripTerminator(data), nil
}

// readAll reads until the server closes the connection. The read deadline is
// re-armed before each read, so a slow but steady server is not cut off.
func (c *Client) readAll(conn net.Conn) ([]byte, error) {
	var data []byte
	buf := make([]byte, readChunkSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}

		n, err := conn.Read(buf)
		data = append(data, buf[:n]...)
		if int64(len(data)) > c.maxResponseSize {
			return nil, ErrSizeLimit
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return data, nil
			}
			return nil, err
		}
	}
}

// dial opens a connection bounded by the connect timeout.
func (c *Client) dial(ctx context.Context, address string) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(dialCtx, "tcp", address)
	}
	return dialWithContext(dialCtx, c.dialer, address)
}

// dialWithContext dials with a dialer that does not accept a context.
func dialWithContext(ctx context.Context, d proxy.Dialer, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}

	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := d.Dial("tcp", address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close() //nolint:errcheck // late connection nobody will use
			}
		}()
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.conn, result.err
	}
}

// checkHost rejects onion hosts that cannot be reached with this client.
func (c *Client) checkHost(host string) error {
	if !tor.IsOnionHost(host) {
		return nil
	}
	if !c.proxied {
		return errOnionWithoutProxy
	}
	if !tor.IsValidV3Address(host) {
		return errInvalidOnion
	}
	return nil
}

// classifyDialError maps a dial error to a kind. The parent context is
// checked first so that an interrupt is not reported as a timeout.
func classifyDialError(ctx context.Context, err error) FetchErrorKind {
	if ctx.Err() != nil {
		return KindCanceled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindResolve
	}

	if isTimeout(err) {
		return KindConnectTimeout
	}
	return KindConnect
}

// classifyIOError maps a read or write error to a kind.
func classifyIOError(ctx context.Context, err error) FetchErrorKind {
	if ctx.Err() != nil {
		return KindCanceled
	}
	if isTimeout(err) {
		return KindReadTimeout
	}
	return KindConnect
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
