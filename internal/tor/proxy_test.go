package tor

import (
	"context"
	"errors"
	"net"
	"testing"

	"golang.org/x/net/proxy"
)

func TestNewProxy(t *testing.T) {
	t.Parallel()

	t.Run("valid address", func(t *testing.T) {
		t.Parallel()

		p, err := NewProxy("127.0.0.1:9050")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Address() != "127.0.0.1:9050" {
			t.Errorf("Address() = %q", p.Address())
		}
		if _, ok := p.Dialer().(proxy.ContextDialer); !ok {
			t.Error("expected the SOCKS5 dialer to support DialContext")
		}
	})

	for _, addr := range []string{"", "127.0.0.1", ":9050", "127.0.0.1:", "127.0.0.1:0", "127.0.0.1:70000", "host:port"} {
		t.Run("rejects "+addr, func(t *testing.T) {
			t.Parallel()

			if _, err := NewProxy(addr); !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("NewProxy(%q) error = %v, expected ErrInvalidProxyAddress", addr, err)
			}
		})
	}
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		address string
		valid   bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9150", true},
		{"[::1]:9050", true},
		{"127.0.0.1:65535", true},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:-1", false},
		{"a:b:c", false},
	}

	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tc.address); got != tc.valid {
				t.Errorf("isValidProxyAddress(%q) = %v, expected %v", tc.address, got, tc.valid)
			}
		})
	}
}

// startMockProxy serves one connection with handler and returns its address.
func startMockProxy(t *testing.T, handler func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()

	return listener.Addr().String()
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("cannot connect to closed port", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := listener.Addr().String()
		_ = listener.Close()

		p, err := NewProxy(addr)
		if err != nil {
			t.Fatalf("failed to create proxy: %v", err)
		}
		if status := p.CheckConnection(context.Background()); status != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", status)
		}
	})

	t.Run("wrong type for non-SOCKS server", func(t *testing.T) {
		t.Parallel()

		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte("3bad selector\tfake\terror.host\t1\r\n"))
		})

		p, err := NewProxy(addr)
		if err != nil {
			t.Fatalf("failed to create proxy: %v", err)
		}
		if status := p.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("wrong type when auth is required", func(t *testing.T) {
		t.Parallel()

		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})

		p, err := NewProxy(addr)
		if err != nil {
			t.Fatalf("failed to create proxy: %v", err)
		}
		if status := p.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("ok for SOCKS5 proxy answering CONNECT", func(t *testing.T) {
		t.Parallel()

		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte{0x05, 0x00})

			req := make([]byte, 256)
			_, _ = conn.Read(req)
			// host unreachable is still a valid reply
			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})

		p, err := NewProxy(addr)
		if err != nil {
			t.Fatalf("failed to create proxy: %v", err)
		}
		if status := p.CheckConnection(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", status)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		p, err := NewProxy("127.0.0.1:59998")
		if err != nil {
			t.Fatalf("failed to create proxy: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		status := p.CheckConnection(ctx)
		if status != ProxyStatusCannotConnect && status != ProxyStatusTimeout {
			t.Errorf("expected CannotConnect or Timeout, got %v", status)
		}
	})
}
