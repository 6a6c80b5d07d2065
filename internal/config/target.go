package config

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// Target is one server to crawl.
type Target struct {
	Host string
	Port int
}

// String returns host:port.
func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParsePort parses a port argument. On failure it returns DefaultPort along
// with an error wrapping ErrInvalidPort, so the caller can warn and go on.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !validPort(port) {
		return DefaultPort, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return port, nil
}

// ParseTarget parses "host", "host:port" or "[v6addr]:port". A missing port
// is DefaultPort. Unlike ParsePort, an invalid port is an error here.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, ErrEmptyHost
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port, or a bare IPv6 address.
		host = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		return Target{Host: host, Port: DefaultPort}, nil
	}
	if host == "" {
		return Target{}, ErrEmptyHost
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || !validPort(port) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidPort, portStr)
	}
	return Target{Host: host, Port: port}, nil
}

// ReadTargets reads one target per line. Blank lines and lines starting
// with '#' are skipped. Errors name the offending line number.
func ReadTargets(r io.Reader) ([]Target, error) {
	var targets []Target

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := ParseTarget(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		targets = append(targets, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}
