package transmit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"securecast/internal/cache"
	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/wire"
)

// Config controls chunking and pacing.
type Config struct {
	ChunkSize int
	// Rate is datagrams per second; zero or less disables pacing.
	Rate  float64
	Burst int
	// AnnounceTotal sends the extended metadata layout carrying the packet count.
	AnnounceTotal bool
	// RepeatMetadata sends the metadata datagram again before the sentinel.
	RepeatMetadata bool
}

// DefaultChunkSize is the payload size of one data datagram.
const DefaultChunkSize = 1024

// Source is the file being sent. Size may be -1 when unknown; the packet
// count is then not announced.
type Source struct {
	Reader   io.Reader
	Filename string
	Size     int64
}

// Summary describes a finished transmission.
type Summary struct {
	TransferID string
	Filename   string
	Packets    int
	Bytes      int64
	Datagrams  int
	Elapsed    time.Duration
}

// Transmitter sends files to one multicast sink under one session key.
type Transmitter struct {
	sink   domain.Sink
	sealer *crypto.Sealer
	cfg    Config
	log    *slog.Logger

	// NewTransferID is overridable in tests.
	NewTransferID func() string
}

func New(sink domain.Sink, sealer *crypto.Sealer, cfg Config, log *slog.Logger) (*Transmitter, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	// Worst case: 16 bytes of padding plus a 255-byte file id header.
	if wire.SequenceSize+sealer.Overhead()+cfg.ChunkSize+wire.PacketHeaderLen("")+255+wire.BlockSize > wire.MaxDatagramSize {
		return nil, fmt.Errorf("chunk size %d exceeds a UDP datagram", cfg.ChunkSize)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transmitter{sink: sink, sealer: sealer, cfg: cfg, log: log, NewTransferID: uuid.NewString}, nil
}

// Send streams src and returns the frozen cache of what was multicast.
// On error the partial cache is still returned so already-sent packets can
// be repaired.
func (t *Transmitter) Send(ctx context.Context, src Source) (*cache.Sent, Summary, error) {
	start := time.Now()
	id := t.NewTransferID()
	sum := Summary{TransferID: id, Filename: filepath.Base(src.Filename)}
	builder := cache.NewBuilder(id)

	limit := rate.Inf
	if t.cfg.Rate > 0 {
		limit = rate.Limit(t.cfg.Rate)
	}
	lim := rate.NewLimiter(limit, t.cfg.Burst)
	emit := func(b []byte) error {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		if err := t.sink.Send(b); err != nil {
			return err
		}
		sum.Datagrams++
		return nil
	}

	meta := domain.MetadataDatagram{FileID: id, Filename: sum.Filename}
	if t.cfg.AnnounceTotal && src.Size >= 0 {
		if n := (src.Size + int64(t.cfg.ChunkSize) - 1) / int64(t.cfg.ChunkSize); n <= wire.MaxAnnouncedTotal {
			meta.Total = uint32(n)
		} else {
			t.log.Warn("packet count too large to announce", "file", sum.Filename, "packets", n)
		}
	}
	metaBytes, err := wire.EncodeMetadata(meta)
	if err != nil {
		return builder.Freeze(), sum, err
	}
	if err := emit(metaBytes); err != nil {
		return builder.Freeze(), sum, fmt.Errorf("send metadata: %w", err)
	}
	t.log.Info("transfer started", "transfer", id, "file", sum.Filename, "announced_total", meta.Total)

	chunk := make([]byte, t.cfg.ChunkSize)
	seq := domain.FirstSequence
	for {
		n, rerr := io.ReadFull(src.Reader, chunk)
		if n > 0 {
			pkt, err := wire.EncodePacket(domain.PlaintextPacket{FileID: id, LogicalIndex: uint32(seq), Payload: chunk[:n]})
			if err != nil {
				return builder.Freeze(), sum, err
			}
			blob, err := t.sealer.Seal(pkt)
			crypto.Wipe(pkt)
			if err != nil {
				return builder.Freeze(), sum, fmt.Errorf("seal seq %d: %w", seq, err)
			}
			dg := wire.AppendData(make([]byte, 0, wire.SequenceSize+len(blob)), seq, blob)
			builder.Add(seq, dg)
			if err := emit(dg); err != nil {
				return builder.Freeze(), sum, fmt.Errorf("send seq %d: %w", seq, err)
			}
			t.log.Debug("sent", "seq", seq, "bytes", n)
			sum.Packets++
			sum.Bytes += int64(n)
			seq++
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return builder.Freeze(), sum, fmt.Errorf("read source: %w", rerr)
		}
	}

	if t.cfg.RepeatMetadata {
		if err := emit(metaBytes); err != nil {
			return builder.Freeze(), sum, fmt.Errorf("repeat metadata: %w", err)
		}
	}
	if err := emit([]byte(wire.Sentinel)); err != nil {
		return builder.Freeze(), sum, fmt.Errorf("send sentinel: %w", err)
	}
	sum.Elapsed = time.Since(start)
	t.log.Info("transfer streamed", "transfer", id, "packets", sum.Packets, "bytes", sum.Bytes, "elapsed", sum.Elapsed)
	return builder.Freeze(), sum, nil
}
