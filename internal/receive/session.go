package receive

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"

	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/wire"
)

// ErrForeignPacket marks a verified packet that belongs to another transfer.
var ErrForeignPacket = errors.New("packet belongs to another transfer")

// Stats counts what a session saw.
type Stats struct {
	Received   int
	Duplicates int
	Repaired   int
	Rejected   int
	Foreign    int
	Invalid    int
}

// Session is the state of one transfer on one receiver.
type Session struct {
	sealer *crypto.Sealer
	log    *slog.Logger

	meta     *domain.MetadataDatagram
	store    map[domain.Sequence][]byte
	maxSeen  domain.Sequence
	sentinel bool

	// Largest verified data datagram and its sequence; ties keep the lower seq.
	maxWire    int
	maxWireSeq domain.Sequence

	stats Stats
}

func NewSession(sealer *crypto.Sealer, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{sealer: sealer, log: log, store: make(map[domain.Sequence][]byte)}
}

// Ingest classifies and applies one multicast datagram.
func (s *Session) Ingest(b []byte) (wire.Kind, error) {
	kind := wire.Classify(b)
	switch kind {
	case wire.KindSentinel:
		s.sentinel = true
		return kind, nil
	case wire.KindMetadata:
		m, err := wire.DecodeMetadata(b)
		if err != nil {
			s.stats.Invalid++
			return wire.KindInvalid, err
		}
		s.setMetadata(m)
		return kind, nil
	case wire.KindData:
		seq, blob, err := wire.SplitData(b)
		if err != nil {
			s.stats.Invalid++
			return wire.KindInvalid, err
		}
		if _, err := s.accept(seq, blob, false); err != nil {
			return kind, err
		}
		s.noteWire(seq, len(b))
		return kind, nil
	}
	s.stats.Invalid++
	return kind, fmt.Errorf("unrecognised datagram of %d bytes: %w", len(b), domain.ErrMalformed)
}

// Merge applies a datagram obtained through repair. It reports whether the
// datagram filled a gap.
func (s *Session) Merge(b []byte) (bool, error) {
	seq, blob, err := wire.SplitData(b)
	if err != nil {
		s.stats.Invalid++
		return false, err
	}
	fresh, err := s.accept(seq, blob, true)
	if err == nil {
		s.noteWire(seq, len(b))
	}
	return fresh, err
}

func (s *Session) noteWire(seq domain.Sequence, n int) {
	if n > s.maxWire || (n == s.maxWire && seq < s.maxWireSeq) {
		s.maxWire, s.maxWireSeq = n, seq
	}
}

func (s *Session) accept(seq domain.Sequence, blob []byte, repaired bool) (bool, error) {
	if seq < domain.FirstSequence {
		s.stats.Invalid++
		return false, fmt.Errorf("sequence %d: %w", seq, domain.ErrMalformed)
	}
	pt, err := s.sealer.Open(blob)
	if err != nil {
		s.stats.Rejected++
		s.log.Warn("dropping packet", "seq", seq, "err", err)
		return false, err
	}
	pkt, err := wire.DecodePacket(pt)
	if err != nil {
		s.stats.Rejected++
		return false, err
	}
	if domain.Sequence(pkt.LogicalIndex) != seq {
		s.stats.Rejected++
		return false, fmt.Errorf("seq %d carries index %d: %w", seq, pkt.LogicalIndex, domain.ErrIntegrity)
	}
	if s.meta != nil && pkt.FileID != s.meta.FileID {
		s.stats.Foreign++
		return false, fmt.Errorf("seq %d file id %q: %w", seq, pkt.FileID, ErrForeignPacket)
	}

	_, dup := s.store[seq]
	s.store[seq] = pt
	if seq > s.maxSeen {
		s.maxSeen = seq
	}
	switch {
	case dup:
		s.stats.Duplicates++
		return false, nil
	case repaired:
		s.stats.Repaired++
	default:
		s.stats.Received++
	}
	return true, nil
}

// setMetadata records the transfer identity, last write wins. Packets
// already stored under a different file id are discarded.
func (s *Session) setMetadata(m domain.MetadataDatagram) {
	if m.Total > wire.MaxAnnouncedTotal {
		s.log.Warn("ignoring announced total", "file", m.FileID, "total", m.Total)
		m.Total = 0
	}
	s.meta = &m
	for seq, pt := range s.store {
		pkt, err := wire.DecodePacket(pt)
		if err == nil && pkt.FileID == m.FileID {
			continue
		}
		delete(s.store, seq)
		s.stats.Foreign++
	}
	s.maxSeen = 0
	for seq := range s.store {
		s.maxSeen = max(s.maxSeen, seq)
	}
}

// Metadata returns the recorded metadata, if any.
func (s *Session) Metadata() (domain.MetadataDatagram, bool) {
	if s.meta == nil {
		return domain.MetadataDatagram{}, false
	}
	return *s.meta, true
}

// SawSentinel reports whether the end-of-stream marker arrived.
func (s *Session) SawSentinel() bool { return s.sentinel }

// ExpectedTotal is the announced packet count when present, otherwise the
// highest sequence number observed. When both exist the larger wins.
func (s *Session) ExpectedTotal() domain.Sequence {
	t := s.maxSeen
	if s.meta != nil && domain.Sequence(s.meta.Total) > t {
		t = domain.Sequence(s.meta.Total)
	}
	return t
}

// Missing is {1..ExpectedTotal} minus the stored sequence numbers, ascending.
func (s *Session) Missing() []domain.Sequence {
	var out []domain.Sequence
	total := uint64(s.ExpectedTotal())
	for n := uint64(domain.FirstSequence); n <= total; n++ {
		if _, ok := s.store[domain.Sequence(n)]; !ok {
			out = append(out, domain.Sequence(n))
		}
	}
	return out
}

// Complete reports whether the gap set is empty.
func (s *Session) Complete() bool { return len(s.Missing()) == 0 }

// Len is the number of stored packets.
func (s *Session) Len() int { return len(s.store) }

// Ordered yields stored plaintext packets in ascending sequence order.
func (s *Session) Ordered() iter.Seq2[domain.Sequence, []byte] {
	return func(yield func(domain.Sequence, []byte) bool) {
		for _, seq := range slices.Sorted(maps.Keys(s.store)) {
			if !yield(seq, s.store[seq]) {
				return
			}
		}
	}
}

// RecordLen is the length of a full-size data datagram, used to split
// unframed repair replies. Only the final datagram may be short, so the
// largest one seen is exact when it is not the final one. Otherwise the
// length is computed from chunk, the sender's chunk size.
func (s *Session) RecordLen(chunk int) int {
	if (s.maxWire > 0 && s.maxWireSeq < s.ExpectedTotal()) || chunk <= 0 {
		return s.maxWire
	}
	idLen := 36 // uuid string
	if s.meta != nil {
		idLen = len(s.meta.FileID)
	}
	return max(s.maxWire, wire.DataRecordLen(idLen, chunk))
}

func (s *Session) Stats() Stats { return s.stats }

// Clear wipes and drops every stored plaintext.
func (s *Session) Clear() {
	for seq, pt := range s.store {
		crypto.Wipe(pt)
		delete(s.store, seq)
	}
}
