package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"securecast/internal/assemble"
	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/handshake"
	"securecast/internal/netutil"
	"securecast/internal/receive"
	"securecast/internal/repair"
	"securecast/internal/wire"
)

// Options configure the receiving side.
type Options struct {
	HandshakeAddr    string
	HandshakeTimeout time.Duration

	// Group is used when the sender announces none.
	Group     domain.Endpoint
	Interface string
	Integrity crypto.Mode

	BufferSize  int
	IdleTimeout time.Duration

	RepairPort        int
	RepairFraming     wire.Framing
	RepairRetries     int
	RepairRetryDelay  time.Duration
	RepairDialTimeout time.Duration
	RepairRounds      int
	// ChunkSize must match the sender's for unframed repair.
	ChunkSize int

	OutputDir string
}

// ListenFunc opens the inbound datagram socket for group.
type ListenFunc func(ctx context.Context, group domain.Endpoint, ifname string) (net.PacketConn, error)

// Report summarises one receive.
type Report struct {
	Sender      string
	Fingerprint string
	GroupName   string
	Group       domain.Endpoint

	TransferID string
	Filename   string
	End        receive.EndReason
	Expected   domain.Sequence
	Stats      receive.Stats

	Repair    repair.Result
	RepairErr error
	Missing   []domain.Sequence

	Path  string
	Bytes int64
	State domain.TransferState
}

// Service receives files.
type Service struct {
	opts Options
	log  *slog.Logger

	// Listen defaults to joining the multicast group.
	Listen ListenFunc
	// OnState observes the transfer state machine.
	OnState func(domain.TransferState)
}

func New(opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{opts: opts, log: log, Listen: joinMulticast}
}

func joinMulticast(ctx context.Context, group domain.Endpoint, ifname string) (net.PacketConn, error) {
	r, err := netutil.ListenMulticast(ctx, group, ifname)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Receive binds the handshake port and runs one transfer.
func (s *Service) Receive(ctx context.Context) (Report, error) {
	ln, err := handshake.Listen(s.opts.HandshakeAddr)
	if err != nil {
		return Report{State: domain.StateFailed}, err
	}
	defer ln.Close()
	return s.ReceiveOn(ctx, ln)
}

// ReceiveOn runs one transfer using an already-bound handshake listener.
func (s *Service) ReceiveOn(ctx context.Context, ln net.Listener) (rep Report, err error) {
	defer func() {
		if err != nil {
			s.enter(&rep, domain.StateFailed)
		}
	}()

	// Join the default group before the handshake so the first datagrams are
	// not missed; re-join below if the sender names another group.
	group := s.opts.Group
	conn, err := s.Listen(ctx, group, s.opts.Interface)
	if err != nil {
		return rep, err
	}
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	s.enter(&rep, domain.StateHandshaking)
	acc := &handshake.Acceptor{Log: s.log, Timeout: s.opts.HandshakeTimeout}
	hs, err := acc.Accept(ctx, ln)
	if err != nil {
		return rep, err
	}
	defer crypto.WipeKey(&hs.Key)
	rep.Sender, rep.Fingerprint = hs.PeerHost(), hs.Fingerprint

	if hs.Meta != nil {
		rep.GroupName = hs.Meta.GroupName
		if hs.Meta.Group != group {
			_ = conn.Close()
			group = hs.Meta.Group
			if conn, err = s.Listen(ctx, group, s.opts.Interface); err != nil {
				return rep, err
			}
		}
	}
	rep.Group = group

	sealer, err := crypto.NewSealer(hs.Key, s.opts.Integrity)
	if err != nil {
		return rep, err
	}
	defer sealer.Close()
	session := receive.NewSession(sealer, s.log)
	defer session.Clear()

	s.enter(&rep, domain.StateStreaming)
	l := &receive.Listener{
		Conn:        conn,
		Session:     session,
		IdleTimeout: s.opts.IdleTimeout,
		BufferSize:  s.opts.BufferSize,
		Log:         s.log,
	}
	rep.End, err = l.Run(ctx)
	if err != nil {
		return rep, err
	}
	if rep.End == receive.EndStopped {
		return rep, ctx.Err()
	}

	s.enter(&rep, domain.StateRepairing)
	client := &repair.Client{
		Endpoint:    domain.Endpoint{Host: rep.Sender, Port: s.opts.RepairPort},
		Framing:     s.opts.RepairFraming,
		Retries:     s.opts.RepairRetries,
		RetryDelay:  s.opts.RepairRetryDelay,
		DialTimeout: s.opts.RepairDialTimeout,
		Rounds:      s.opts.RepairRounds,
		ChunkSize:   s.opts.ChunkSize,
		Log:         s.log,
	}
	rep.Repair, rep.RepairErr = client.Repair(ctx, session)
	if rep.RepairErr != nil {
		s.log.Warn("repair incomplete", "err", rep.RepairErr)
		if errors.Is(rep.RepairErr, context.Canceled) {
			return rep, rep.RepairErr
		}
	}

	s.enter(&rep, domain.StateAssembling)
	rep.Expected = session.ExpectedTotal()
	rep.Missing = session.Missing()
	rep.Stats = session.Stats()
	meta, ok := session.Metadata()
	if !ok {
		return rep, domain.ErrMetadataMissing
	}
	rep.TransferID, rep.Filename = meta.FileID, meta.Filename
	if len(rep.Missing) > 0 {
		s.log.Warn("writing file with gaps", "transfer", meta.FileID, "missing", len(rep.Missing))
	}
	rep.Path, rep.Bytes, err = assemble.WriteFile(s.opts.OutputDir, &meta, session.Ordered())
	if err != nil {
		return rep, fmt.Errorf("write %s: %w", meta.Filename, err)
	}
	s.enter(&rep, domain.StateComplete)
	s.log.Info("file written", "path", rep.Path, "bytes", rep.Bytes, "transfer", meta.FileID)
	return rep, nil
}

func (s *Service) enter(rep *Report, st domain.TransferState) {
	rep.State = st
	s.log.Debug("transfer", "state", st.String())
	if s.OnState != nil {
		s.OnState(st)
	}
}
