package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"securecast/internal/domain"
)

const acceptPoll = 250 * time.Millisecond

type deadliner interface{ SetDeadline(time.Time) error }

// AcceptContext accepts one connection, giving up once ctx is done. Listeners
// without deadline support block in Accept until a peer arrives.
func AcceptContext(ctx context.Context, ln net.Listener) (net.Conn, error) {
	dl, ok := ln.(deadliner)
	if !ok {
		return ln.Accept()
	}
	defer func() { _ = dl.SetDeadline(time.Time{}) }()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := dl.SetDeadline(time.Now().Add(acceptPoll)); err != nil {
			return nil, err
		}
		conn, err := ln.Accept()
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		return nil, err
	}
}

// ListenTCP binds a TCP listener, reporting failures as ErrTransportBind.
func ListenTCP(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportBind, err)
	}
	return ln, nil
}
