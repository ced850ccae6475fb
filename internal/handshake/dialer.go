package handshake

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/wire"
)

// Dialer runs the sender side against one receiver at a time.
type Dialer struct {
	Log     *slog.Logger
	Timeout time.Duration
	// Meta, when set, is sent as the metadata line after the ack.
	Meta *domain.SessionMetadata
}

// Outcome is the result of handshaking with one receiver.
type Outcome struct {
	Endpoint    domain.Endpoint
	Fingerprint string
	Err         error
}

// Ready reports whether the receiver acknowledged the key.
func (o Outcome) Ready() bool { return o.Err == nil }

// Dial hands key to the receiver at ep.
func (d *Dialer) Dial(ctx context.Context, ep domain.Endpoint, key domain.SessionKey) Outcome {
	out := Outcome{Endpoint: ep}
	log := d.log().With("peer", ep.String())
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	nd := net.Dialer{Timeout: timeout}
	conn, err := nd.DialContext(ctx, "tcp", ep.String())
	if err != nil {
		out.Err = fmt.Errorf("%w: connect: %v", domain.ErrHandshake, err)
		return out
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	r := bufio.NewReader(conn)
	pemBytes, err := wire.ReadPublicKey(r)
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", domain.ErrHandshake, err)
		return out
	}
	pub, err := crypto.ParsePublicKey(pemBytes)
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", domain.ErrHandshake, err)
		return out
	}
	out.Fingerprint = crypto.Fingerprint(pub)

	wrapped, err := crypto.WrapKey(pub, key)
	if err != nil {
		out.Err = fmt.Errorf("%w: %w", domain.ErrHandshake, err)
		return out
	}
	if _, err := conn.Write(wrapped); err != nil {
		out.Err = fmt.Errorf("%w: send wrapped key: %v", domain.ErrHandshake, err)
		return out
	}

	ack := make([]byte, len(wire.ReadyMarker))
	if _, err := io.ReadFull(r, ack); err != nil {
		out.Err = fmt.Errorf("%w: read ack: %v", domain.ErrHandshake, err)
		return out
	}
	if string(ack) != wire.ReadyMarker {
		out.Err = fmt.Errorf("%w: unexpected ack %q", domain.ErrHandshake, ack)
		return out
	}

	if d.Meta != nil {
		if _, err := conn.Write(wire.EncodeMetadataLine(*d.Meta)); err != nil {
			log.Warn("metadata line not delivered", "err", err)
		}
	}
	log.Info("receiver ready", "fingerprint", out.Fingerprint)
	return out
}

func (d *Dialer) log() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}

// FanOut handshakes with every endpoint concurrently under the same key.
// Outcomes are returned in endpoint order.
func FanOut(ctx context.Context, d *Dialer, endpoints []domain.Endpoint, key domain.SessionKey) []Outcome {
	out := make([]Outcome, len(endpoints))
	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep domain.Endpoint) {
			defer wg.Done()
			out[i] = d.Dial(ctx, ep, key)
			if out[i].Err != nil {
				d.log().Warn("receiver excluded", "peer", ep.String(), "err", out[i].Err)
			}
		}(i, ep)
	}
	wg.Wait()
	return out
}

// Ready filters outcomes down to receivers that acknowledged the key.
func Ready(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Ready() {
			out = append(out, o)
		}
	}
	return out
}
