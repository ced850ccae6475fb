package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"securecast/internal/cache"
	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/handshake"
	"securecast/internal/netutil"
	"securecast/internal/repair"
	"securecast/internal/transmit"
	"securecast/internal/wire"
)

// Options configure the sending side.
type Options struct {
	GroupName string
	Group     domain.Endpoint
	Multicast netutil.SenderOptions

	Transmit  transmit.Config
	Integrity crypto.Mode
	// StartDelay gives receivers time to join the group after the handshake.
	StartDelay time.Duration

	HandshakeTimeout time.Duration

	RepairAddr    string
	RepairMode    repair.Mode
	RepairFraming wire.Framing
	RepairWindow  time.Duration

	Spool bool
}

// SinkFunc opens the outbound datagram sink.
type SinkFunc func(group domain.Endpoint, opts netutil.SenderOptions) (domain.Sink, io.Closer, error)

// Report summarises one send.
type Report struct {
	TransferID string
	Filename   string
	Receivers  []handshake.Outcome
	Ready      int
	Stream     transmit.Summary
	Repair     repair.Summary
	Spooled    bool
}

// Service sends files.
type Service struct {
	opts  Options
	spool domain.SpoolStore
	log   *slog.Logger

	// OpenSink defaults to a multicast socket.
	OpenSink SinkFunc
	// NewTransferID overrides the generated transfer identifier.
	NewTransferID func() string
}

// New constructs a sender Service. spool may be nil when spooling is off.
func New(opts Options, spool domain.SpoolStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{opts: opts, spool: spool, log: log, OpenSink: openMulticast}
}

func openMulticast(group domain.Endpoint, opts netutil.SenderOptions) (domain.Sink, io.Closer, error) {
	s, err := netutil.DialMulticast(group, opts)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

// ErrNoReceivers is returned when no receiver completed the handshake.
var ErrNoReceivers = errors.New("no receiver became ready")

// Send distributes the file at path to receivers.
//
// Steps:
//  1. Generate one session key for the whole transfer.
//  2. Hand it to every receiver concurrently; failures exclude that receiver.
//  3. Bind the repair port before streaming so early requests are not refused.
//  4. Stream metadata, data and the sentinel over multicast.
//  5. Spool the sent cache if configured.
//  6. Serve repair until all ready receivers complete or the window closes.
func (s *Service) Send(ctx context.Context, path string, receivers []domain.Endpoint) (Report, error) {
	var rep Report

	key, err := crypto.NewSessionKey()
	if err != nil {
		return rep, err
	}
	defer crypto.WipeKey(&key)

	dialer := &handshake.Dialer{
		Log:     s.log,
		Timeout: s.opts.HandshakeTimeout,
		Meta:    &domain.SessionMetadata{GroupName: s.opts.GroupName, Group: s.opts.Group},
	}
	rep.Receivers = handshake.FanOut(ctx, dialer, receivers, key)
	rep.Ready = len(handshake.Ready(rep.Receivers))
	if rep.Ready == 0 {
		return rep, fmt.Errorf("%w: %w", domain.ErrHandshake, ErrNoReceivers)
	}
	s.log.Info("receivers ready", "ready", rep.Ready, "selected", len(receivers))

	ln, err := repair.Listen(s.opts.RepairAddr)
	if err != nil {
		return rep, err
	}
	defer ln.Close()

	sink, closer, err := s.OpenSink(s.opts.Group, s.opts.Multicast)
	if err != nil {
		return rep, err
	}
	defer closer.Close()

	sealer, err := crypto.NewSealer(key, s.opts.Integrity)
	if err != nil {
		return rep, err
	}
	defer sealer.Close()

	f, err := os.Open(path)
	if err != nil {
		return rep, err
	}
	defer f.Close()
	size := int64(-1)
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	tx, err := transmit.New(sink, sealer, s.opts.Transmit, s.log)
	if err != nil {
		return rep, err
	}
	if s.NewTransferID != nil {
		tx.NewTransferID = s.NewTransferID
	}

	if s.opts.StartDelay > 0 {
		select {
		case <-ctx.Done():
			return rep, ctx.Err()
		case <-time.After(s.opts.StartDelay):
		}
	}

	sent, sum, err := tx.Send(ctx, transmit.Source{Reader: f, Filename: path, Size: size})
	rep.TransferID, rep.Filename, rep.Stream = sum.TransferID, sum.Filename, sum
	if err != nil {
		return rep, err
	}

	if s.opts.Spool && s.spool != nil {
		if err := s.spool.SaveSpool(sent.TransferID(), sent.Snapshot()); err != nil {
			s.log.Warn("spool not written", "transfer", sent.TransferID(), "err", err)
		} else {
			rep.Spooled = true
		}
	}

	rep.Repair, err = s.serve(ctx, ln, sent, rep.Ready)
	return rep, err
}

// ServeSpool re-opens the repair window for a spooled transfer. With
// receivers zero the window stays open until it expires.
func (s *Service) ServeSpool(ctx context.Context, transferID string, receivers int) (repair.Summary, error) {
	if s.spool == nil {
		return repair.Summary{}, errors.New("no spool store configured")
	}
	packets, ok, err := s.spool.LoadSpool(transferID)
	if err != nil {
		return repair.Summary{}, err
	}
	if !ok {
		return repair.Summary{}, fmt.Errorf("transfer %s: %w", transferID, os.ErrNotExist)
	}
	ln, err := repair.Listen(s.opts.RepairAddr)
	if err != nil {
		return repair.Summary{}, err
	}
	defer ln.Close()
	s.log.Info("serving spooled transfer", "transfer", transferID, "packets", len(packets))
	return s.serve(ctx, ln, cache.FromMap(transferID, packets), receivers)
}

func (s *Service) serve(ctx context.Context, ln net.Listener, pc domain.PacketCache, receivers int) (repair.Summary, error) {
	c := &repair.Coordinator{
		Cache:     pc,
		Framing:   s.opts.RepairFraming,
		Mode:      s.opts.RepairMode,
		Window:    s.opts.RepairWindow,
		Receivers: receivers,
		Log:       s.log,
	}
	return c.Serve(ctx, ln)
}

// RepairAddr formats a listen address for the repair port on all interfaces.
func RepairAddr(port int) string { return net.JoinHostPort("", strconv.Itoa(port)) }
