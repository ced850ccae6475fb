package receive

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"securecast/internal/wire"
)

// EndReason says why Listener.Run returned.
type EndReason int

const (
	EndSentinel EndReason = iota
	EndIdle
	EndStopped
)

func (r EndReason) String() string {
	switch r {
	case EndSentinel:
		return "sentinel"
	case EndIdle:
		return "idle"
	}
	return "stopped"
}

const (
	DefaultReadTimeout = 500 * time.Millisecond
	DefaultBufferSize  = 20480
)

// Listener reads multicast datagrams into a Session.
type Listener struct {
	Conn    net.PacketConn
	Session *Session

	// ReadTimeout bounds each blocking read so cancellation is noticed.
	ReadTimeout time.Duration
	// IdleTimeout ends the loop after this much silence once at least one
	// datagram arrived. Zero waits for the sentinel or cancellation.
	IdleTimeout time.Duration
	BufferSize  int
	Log         *slog.Logger
}

// Run blocks until the sentinel arrives, the idle timeout fires, or ctx is
// done. Cancellation is a graceful stop and returns a nil error.
func (l *Listener) Run(ctx context.Context) (EndReason, error) {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	rt := l.ReadTimeout
	if rt <= 0 {
		rt = DefaultReadTimeout
	}
	size := l.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buf := make([]byte, size)
	defer func() { _ = l.Conn.SetReadDeadline(time.Time{}) }()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			log.Info("receive stopped")
			return EndStopped, nil
		default:
		}

		if err := l.Conn.SetReadDeadline(time.Now().Add(rt)); err != nil {
			return EndStopped, err
		}
		n, src, err := l.Conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if l.IdleTimeout > 0 && !last.IsZero() && time.Since(last) >= l.IdleTimeout {
					log.Warn("no sentinel before idle timeout", "idle", l.IdleTimeout)
					return EndIdle, nil
				}
				continue
			}
			if ctx.Err() != nil {
				return EndStopped, nil
			}
			return EndStopped, err
		}
		last = time.Now()

		kind, err := l.Session.Ingest(buf[:n])
		if err != nil {
			log.Debug("datagram dropped", "from", src, "kind", kind, "err", err)
			continue
		}
		switch kind {
		case wire.KindSentinel:
			log.Info("end of stream", "packets", l.Session.Len(), "expected", l.Session.ExpectedTotal())
			return EndSentinel, nil
		case wire.KindMetadata:
			m, _ := l.Session.Metadata()
			log.Info("transfer metadata", "transfer", m.FileID, "file", m.Filename, "announced_total", m.Total)
		}
	}
}
