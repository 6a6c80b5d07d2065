package model

import (
	"cmp"
	"net"
	"strconv"
	"strings"
)

// ServerStatus is the result of probing an external server.
type ServerStatus string

const (
	// StatusUp means the server answered a root selector request.
	StatusUp ServerStatus = "up"
	// StatusDown means the request failed for any reason.
	StatusDown ServerStatus = "down/error"
)

// ServerKey identifies a Gopher server. Host is stored lowercase so that
// keys built from differently cased listings compare equal.
type ServerKey struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NewServerKey builds a key, lowercasing host.
func NewServerKey(host string, port int) ServerKey {
	return ServerKey{Host: strings.ToLower(host), Port: port}
}

// String returns host:port.
func (k ServerKey) String() string {
	return net.JoinHostPort(k.Host, strconv.Itoa(k.Port))
}

// Compare orders keys by host, then port.
func (k ServerKey) Compare(other ServerKey) int {
	return cmp.Or(
		cmp.Compare(k.Host, other.Host),
		cmp.Compare(k.Port, other.Port),
	)
}

// ExternalServer is one probed server and its status.
type ExternalServer struct {
	ServerKey
	Status ServerStatus `json:"status"`
}
