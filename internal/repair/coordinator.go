package repair

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"securecast/internal/domain"
	"securecast/internal/netutil"
	"securecast/internal/wire"
)

// Mode selects the coordinator's connection strategy.
type Mode int

const (
	Multiplexed Mode = iota
	Sequential
)

func (m Mode) String() string {
	if m == Sequential {
		return "sequential"
	}
	return "multiplexed"
}

// ParseMode accepts "sequential" or "multiplexed".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "multiplexed", "":
		return Multiplexed, true
	case "sequential":
		return Sequential, true
	}
	return Multiplexed, false
}

const (
	DefaultWindow = 60 * time.Second
	// maxRequest bounds a request line: ten digits and a comma per sequence
	// for a transfer of a million packets.
	maxRequest  = 11 << 20
	readTimeout = 10 * time.Second
)

// Session is the per-connection state of one repair exchange.
type Session struct {
	peer      string
	buf       []byte
	requested []domain.Sequence
	cursor    int
}

// SessionReport is what one connection amounted to.
type SessionReport struct {
	Peer      string
	Complete  bool
	Requested int
	Served    int
	Skipped   int
	Err       error
}

// EndReason says why the repair window closed.
type EndReason string

const (
	EndAllComplete EndReason = "complete"
	EndWindow      EndReason = "window"
	EndStopped     EndReason = "stopped"
)

// Summary aggregates every session served during one window.
type Summary struct {
	Sessions  int
	Completed int
	Served    int
	Skipped   int
	Failed    int
	Reason    EndReason
}

func (s *Summary) add(r SessionReport) {
	if r.Complete {
		s.Completed++
	}
	s.Served += r.Served
	s.Skipped += r.Skipped
	if r.Err != nil {
		s.Failed++
	}
}

// Coordinator answers repair requests from a read-only packet cache.
type Coordinator struct {
	Cache   domain.PacketCache
	Framing wire.Framing
	Mode    Mode
	// Window is the hard wall-clock limit of the repair phase.
	Window time.Duration
	// Receivers is how many completion signals close the window early.
	// Zero keeps the window open until it expires.
	Receivers int
	Log       *slog.Logger
}

// Serve runs the repair window on ln. ln is not closed.
func (c *Coordinator) Serve(ctx context.Context, ln net.Listener) (Summary, error) {
	window := c.Window
	if window <= 0 {
		window = DefaultWindow
	}
	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	log := c.log()
	log.Info("repair window open", "transfer", c.Cache.TransferID(), "mode", c.Mode.String(),
		"framing", c.Framing.String(), "window", window, "receivers", c.Receivers)

	var (
		sum Summary
		err error
	)
	if c.Mode == Sequential {
		sum, err = c.serveSequential(wctx, ln)
	} else {
		sum, err = c.serveMultiplexed(wctx, ln)
	}
	if err != nil {
		return sum, err
	}
	if sum.Reason == "" {
		sum.Reason = EndWindow
		if ctx.Err() != nil {
			sum.Reason = EndStopped
		}
	}
	log.Info("repair window closed", "reason", string(sum.Reason), "sessions", sum.Sessions,
		"completed", sum.Completed, "served", sum.Served, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func (c *Coordinator) done(sum Summary) bool {
	return c.Receivers > 0 && sum.Completed >= c.Receivers
}

func (c *Coordinator) serveSequential(ctx context.Context, ln net.Listener) (Summary, error) {
	var sum Summary
	for {
		conn, err := netutil.AcceptContext(ctx, ln)
		if err != nil {
			if ctx.Err() != nil {
				return sum, nil
			}
			return sum, err
		}
		sum.Sessions++
		sum.add(c.handle(ctx, conn))
		if c.done(sum) {
			sum.Reason = EndAllComplete
			return sum, nil
		}
	}
}

func (c *Coordinator) serveMultiplexed(ctx context.Context, ln net.Listener) (Summary, error) {
	actx, stopAccept := context.WithCancel(ctx)
	defer stopAccept()

	conns := make(chan net.Conn)
	acceptErr := make(chan error, 1)
	go func() {
		for {
			conn, err := netutil.AcceptContext(actx, ln)
			if err != nil {
				acceptErr <- err
				return
			}
			select {
			case conns <- conn:
			case <-actx.Done():
				_ = conn.Close()
				acceptErr <- actx.Err()
				return
			}
		}
	}()

	var (
		sum     Summary
		wg      sync.WaitGroup
		reports = make(chan SessionReport)
		fatal   error
	)
loop:
	for {
		select {
		case conn := <-conns:
			sum.Sessions++
			wg.Add(1)
			go func() {
				defer wg.Done()
				reports <- c.handle(ctx, conn)
			}()
		case r := <-reports:
			sum.add(r)
			if c.done(sum) {
				sum.Reason = EndAllComplete
				break loop
			}
		case err := <-acceptErr:
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				fatal = err
			}
			break loop
		}
	}
	stopAccept()

	go func() {
		wg.Wait()
		close(reports)
	}()
	for r := range reports {
		sum.add(r)
	}
	return sum, fatal
}

// handle serves one connection to completion and closes it.
func (c *Coordinator) handle(ctx context.Context, conn net.Conn) SessionReport {
	defer conn.Close()
	s := &Session{peer: conn.RemoteAddr().String()}
	log := c.log().With("peer", s.peer)
	rep := SessionReport{Peer: s.peer}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	if err := s.readRequest(conn); err != nil {
		rep.Err = err
		log.Warn("repair request unreadable", "err", err)
		return rep
	}
	req, err := wire.ParseRequest(s.buf)
	if err != nil {
		rep.Err = err
		log.Warn("repair request rejected", "err", err)
		return rep
	}
	if req.Complete {
		rep.Complete = true
		log.Info("receiver complete")
		return rep
	}
	s.requested = req.Missing
	rep.Requested = len(s.requested)

	w := bufio.NewWriter(conn)
	for ; s.cursor < len(s.requested); s.cursor++ {
		seq := s.requested[s.cursor]
		dg, ok := c.Cache.Lookup(seq)
		if !ok {
			rep.Skipped++
			continue
		}
		if c.Framing == wire.Framed {
			err = wire.WriteFrame(w, dg)
		} else {
			_, err = w.Write(dg)
		}
		if err != nil {
			break
		}
		rep.Served++
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		rep.Err = err
		log.Warn("repair reply aborted", "served", rep.Served, "err", err)
		return rep
	}
	log.Info("repair served", "requested", rep.Requested, "served", rep.Served, "skipped", rep.Skipped)
	return rep
}

// readRequest reads up to the first newline or end of stream.
func (s *Session) readRequest(r io.Reader) error {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		s.buf = append(s.buf, chunk[:n]...)
		if i := bytes.IndexByte(s.buf, '\n'); i >= 0 {
			s.buf = s.buf[:i]
			return nil
		}
		if len(s.buf) > maxRequest {
			return fmt.Errorf("request exceeds %d bytes: %w", maxRequest, domain.ErrMalformed)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c *Coordinator) log() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

// Listen binds the repair port.
func Listen(addr string) (net.Listener, error) { return netutil.ListenTCP(addr) }
