package handshake

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/netutil"
	"securecast/internal/wire"
)

// DefaultTimeout bounds each read or write of a handshake.
const DefaultTimeout = 10 * time.Second

// Listen binds the handshake port.
func Listen(addr string) (net.Listener, error) { return netutil.ListenTCP(addr) }

// Result is what a receiver learns from a completed handshake.
type Result struct {
	Key         domain.SessionKey
	Peer        net.Addr
	Meta        *domain.SessionMetadata
	Fingerprint string
	State       domain.HandshakeState
}

// PeerHost is the sender's IP as seen on the handshake connection.
func (r Result) PeerHost() string {
	if ta, ok := r.Peer.(*net.TCPAddr); ok {
		return ta.IP.String()
	}
	host, _, err := net.SplitHostPort(r.Peer.String())
	if err != nil {
		return ""
	}
	return host
}

// Acceptor runs the receiver side.
type Acceptor struct {
	Log     *slog.Logger
	Timeout time.Duration
	// OnState observes every state transition.
	OnState func(domain.HandshakeState)
}

// Accept waits for one sender and completes the handshake with it.
func (a *Acceptor) Accept(ctx context.Context, ln net.Listener) (Result, error) {
	a.enter(domain.HandshakeListening)
	conn, err := netutil.AcceptContext(ctx, ln)
	if err != nil {
		return Result{}, err
	}
	return a.Serve(ctx, conn)
}

// Serve completes the handshake on an accepted connection and closes it.
func (a *Acceptor) Serve(ctx context.Context, conn net.Conn) (res Result, err error) {
	defer conn.Close()
	log := a.log().With("peer", conn.RemoteAddr().String())
	res.Peer = conn.RemoteAddr()
	a.enter(domain.HandshakeAccepted)
	defer func() {
		a.enter(domain.HandshakeClosed)
		res.State = domain.HandshakeClosed
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	if err := conn.SetDeadline(time.Now().Add(a.timeout())); err != nil {
		return res, err
	}

	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		return res, err
	}
	pemBytes, err := crypto.MarshalPublicKey(pub)
	if err != nil {
		return res, err
	}
	res.Fingerprint = crypto.Fingerprint(pub)
	if _, err := conn.Write(pemBytes); err != nil {
		return res, fmt.Errorf("%w: send public key: %v", domain.ErrHandshake, err)
	}
	a.enter(domain.HandshakeSentPubKey)
	log.Debug("public key sent", "fingerprint", res.Fingerprint)

	wrapped := make([]byte, pub.Size())
	if _, err := io.ReadFull(conn, wrapped); err != nil {
		return res, fmt.Errorf("%w: read wrapped key: %v", domain.ErrHandshake, err)
	}
	key, err := crypto.UnwrapKey(priv, wrapped)
	if err != nil {
		return res, fmt.Errorf("%w: %w", domain.ErrHandshake, err)
	}
	res.Key = key
	a.enter(domain.HandshakeKeyReceived)

	if _, err := io.WriteString(conn, wire.ReadyMarker); err != nil {
		crypto.WipeKey(&res.Key)
		return res, fmt.Errorf("%w: send ack: %v", domain.ErrHandshake, err)
	}
	a.enter(domain.HandshakeReadySent)

	line, err := bufio.NewReader(conn).ReadString('\n')
	switch {
	case strings.TrimSpace(line) == "":
		if err != nil && !errors.Is(err, io.EOF) {
			log.Debug("no metadata line", "err", err)
		}
	default:
		meta, perr := wire.ParseMetadataLine(line)
		if perr != nil {
			log.Warn("ignoring metadata line", "err", perr)
			break
		}
		res.Meta = &meta
		a.enter(domain.HandshakeMetadataReceived)
		log.Debug("metadata received", "group", meta.Group.String(), "name", meta.GroupName)
	}
	log.Info("handshake complete")
	return res, nil
}

func (a *Acceptor) enter(s domain.HandshakeState) {
	a.log().Debug("handshake", "state", s.String())
	if a.OnState != nil {
		a.OnState(s)
	}
}

func (a *Acceptor) log() *slog.Logger {
	if a.Log == nil {
		return slog.Default()
	}
	return a.Log
}

func (a *Acceptor) timeout() time.Duration {
	if a.Timeout <= 0 {
		return DefaultTimeout
	}
	return a.Timeout
}
