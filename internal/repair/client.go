package repair

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"securecast/internal/domain"
	"securecast/internal/receive"
	"securecast/internal/wire"
)

// Client defaults.
const (
	DefaultRetries     = 5
	DefaultRetryDelay  = 2 * time.Second
	DefaultDialTimeout = 5 * time.Second
	DefaultReadTimeout = 30 * time.Second
	DefaultRounds      = 3
)

// Client drives repair for one receiver.
type Client struct {
	Endpoint    domain.Endpoint
	Framing     wire.Framing
	Retries     int
	RetryDelay  time.Duration
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Rounds      int
	// ChunkSize is the sender's payload size; unframed replies fall back to
	// it when no full-size datagram was seen.
	ChunkSize int
	Log       *slog.Logger
}

// Result describes what repair achieved. Missing is what is still absent.
type Result struct {
	Rounds    int
	Requested int
	Recovered int
	Rejected  int
	Completed bool
	Missing   []domain.Sequence
}

// Repair closes the gaps in s as far as the sender can. A connection failure
// after all retries returns ErrRepairConnect; the session keeps whatever was
// recovered and the caller may still write a partial file.
func (c *Client) Repair(ctx context.Context, s *receive.Session) (Result, error) {
	var res Result
	log := c.log().With("peer", c.Endpoint.String())
	for {
		missing := s.Missing()
		if len(missing) == 0 {
			if _, err := c.exchange(ctx, nil, 0); err != nil {
				return res, err
			}
			res.Completed = true
			log.Info("repair complete", "rounds", res.Rounds, "recovered", res.Recovered)
			return res, nil
		}
		if res.Rounds >= c.rounds() {
			res.Missing = missing
			log.Warn("repair rounds exhausted", "missing", len(missing))
			return res, nil
		}
		res.Rounds++
		request := missing[:min(len(missing), wire.MaxRequestSequences)]
		res.Requested += len(request)
		log.Info("requesting repair", "round", res.Rounds, "missing", len(missing), "requested", len(request))

		records, xerr := c.exchange(ctx, request, s.RecordLen(c.ChunkSize))
		recovered := 0
		for _, rec := range records {
			fresh, err := s.Merge(rec)
			switch {
			case err != nil:
				res.Rejected++
			case fresh:
				recovered++
			}
		}
		res.Recovered += recovered
		if xerr != nil {
			res.Missing = s.Missing()
			return res, xerr
		}
		if recovered == 0 {
			res.Missing = missing
			log.Warn("repair made no progress", "missing", len(missing))
			return res, nil
		}
	}
}

// exchange sends one request and collects the reply records. An empty
// missing list sends the completion signal and reads nothing.
func (c *Client) exchange(ctx context.Context, missing []domain.Sequence, recordLen int) ([][]byte, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	rt := c.ReadTimeout
	if rt <= 0 {
		rt = DefaultReadTimeout
	}
	_ = conn.SetDeadline(time.Now().Add(rt))
	if _, err := conn.Write(wire.EncodeRequest(missing)); err != nil {
		return nil, fmt.Errorf("send repair request: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	if len(missing) == 0 {
		return nil, nil
	}

	if c.Framing == wire.Unframed {
		raw, err := io.ReadAll(conn)
		if err != nil {
			return nil, fmt.Errorf("read repair reply: %w", err)
		}
		return wire.SplitUnframed(raw, recordLen), nil
	}
	var records [][]byte
	for {
		rec, err := wire.ReadFrame(conn)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("read repair reply: %w", err)
		}
		records = append(records, rec)
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	retries := c.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}

	var last error
	for attempt := 1; attempt <= retries; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", c.Endpoint.String())
		if err == nil {
			return conn, nil
		}
		last = err
		c.log().Debug("repair connect failed", "peer", c.Endpoint.String(), "attempt", attempt, "err", err)
		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrRepairConnect, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrRepairConnect, retries, last)
}

func (c *Client) rounds() int {
	if c.Rounds <= 0 {
		return DefaultRounds
	}
	return c.Rounds
}

func (c *Client) log() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}
