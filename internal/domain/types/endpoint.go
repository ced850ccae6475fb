package types

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint is an (address, port) pair, as yielded by discovery or configuration.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint parses "host:port".
func ParseEndpoint(s string) (Endpoint, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: %w", s, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return Endpoint{}, fmt.Errorf("endpoint %q: invalid port", s)
	}
	return Endpoint{Host: host, Port: p}, nil
}

// SessionMetadata is the optional line a sender passes at the end of the
// handshake: which group the transfer will be multicast to.
type SessionMetadata struct {
	GroupName string
	Group     Endpoint
}
