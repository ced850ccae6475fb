package receive_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"math"
	"net"
	"slices"
	"testing"
	"time"

	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/receive"
	"securecast/internal/transmit"
	"securecast/internal/wire"
)

type captureSink struct{ out [][]byte }

func (c *captureSink) Send(b []byte) error {
	c.out = append(c.out, append([]byte(nil), b...))
	return nil
}

// stream returns the datagrams of a size-byte transfer in send order.
func stream(t *testing.T, sealer *crypto.Sealer, size, chunk int, announce bool) ([]byte, [][]byte) {
	t.Helper()
	src := make([]byte, size)
	_, _ = rand.Read(src)
	sink := &captureSink{}
	tx, err := transmit.New(sink, sealer, transmit.Config{ChunkSize: chunk, AnnounceTotal: announce}, nil)
	if err != nil {
		t.Fatalf("transmit.New: %v", err)
	}
	if _, _, err := tx.Send(context.Background(), transmit.Source{Reader: bytes.NewReader(src), Filename: "f.bin", Size: int64(size)}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	return src, sink.out
}

func newSealer(t *testing.T) *crypto.Sealer {
	t.Helper()
	key, err := crypto.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	s, err := crypto.NewSealer(key, crypto.IntegrityDigest)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return s
}

func seqOf(t *testing.T, dg []byte) domain.Sequence {
	t.Helper()
	seq, _, err := wire.SplitData(dg)
	if err != nil {
		t.Fatalf("SplitData: %v", err)
	}
	return seq
}

func TestSession_GapSet(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 10000, 1000, false)
	s := receive.NewSession(sealer, nil)

	for _, dg := range dgs {
		if wire.Classify(dg) == wire.KindData {
			if seq := seqOf(t, dg); seq == 3 || seq == 7 {
				continue
			}
		}
		if _, err := s.Ingest(dg); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	if !s.SawSentinel() {
		t.Fatal("sentinel not recorded")
	}
	if s.ExpectedTotal() != 10 {
		t.Fatalf("ExpectedTotal = %d, want 10", s.ExpectedTotal())
	}
	if got := s.Missing(); !slices.Equal(got, []domain.Sequence{3, 7}) {
		t.Fatalf("Missing = %v, want [3 7]", got)
	}
	if s.Complete() {
		t.Fatal("Complete with gaps")
	}
	m, ok := s.Metadata()
	if !ok || m.Filename != "f.bin" {
		t.Fatalf("Metadata = %+v, %v", m, ok)
	}
}

func TestSession_LostLastPacket(t *testing.T) {
	for _, announce := range []bool{false, true} {
		sealer := newSealer(t)
		_, dgs := stream(t, sealer, 5000, 1000, announce)
		s := receive.NewSession(sealer, nil)
		for _, dg := range dgs {
			if wire.Classify(dg) == wire.KindData && seqOf(t, dg) == 5 {
				continue
			}
			_, _ = s.Ingest(dg)
		}
		if announce {
			if got := s.Missing(); !slices.Equal(got, []domain.Sequence{5}) {
				t.Fatalf("announced: Missing = %v, want [5]", got)
			}
		} else if s.ExpectedTotal() != 4 || !s.Complete() {
			t.Fatalf("heuristic: ExpectedTotal = %d, Missing = %v", s.ExpectedTotal(), s.Missing())
		}
	}
}

func TestSession_IgnoresOversizedAnnouncedTotal(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 3000, 1000, false)
	for _, total := range []uint32{math.MaxUint32, wire.MaxAnnouncedTotal + 1} {
		s := receive.NewSession(sealer, nil)
		for _, dg := range dgs {
			if wire.Classify(dg) == wire.KindMetadata {
				m, err := wire.DecodeMetadata(dg)
				if err != nil {
					t.Fatalf("DecodeMetadata: %v", err)
				}
				m.Total = total
				if dg, err = wire.EncodeMetadata(m); err != nil {
					t.Fatalf("EncodeMetadata: %v", err)
				}
			}
			_, _ = s.Ingest(dg)
		}

		done := make(chan []domain.Sequence, 1)
		go func() { done <- s.Missing() }()
		select {
		case got := <-done:
			if len(got) != 0 || s.ExpectedTotal() != 3 {
				t.Fatalf("total %d: ExpectedTotal = %d, Missing = %v", total, s.ExpectedTotal(), got)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("total %d: Missing did not return", total)
		}
	}
}

func TestSession_ReplayedUnderOtherSequenceRejected(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 3000, 1000, false)
	s := receive.NewSession(sealer, nil)
	for _, dg := range dgs {
		_, _ = s.Ingest(dg)
	}

	_, blob, err := wire.SplitData(dgs[1])
	if err != nil {
		t.Fatalf("SplitData: %v", err)
	}
	for _, seq := range []domain.Sequence{2, math.MaxUint32} {
		if _, err := s.Ingest(wire.AppendData(nil, seq, blob)); !errors.Is(err, domain.ErrIntegrity) {
			t.Fatalf("seq %d: want ErrIntegrity, got %v", seq, err)
		}
	}
	if s.ExpectedTotal() != 3 || !s.Complete() {
		t.Fatalf("ExpectedTotal = %d, Missing = %v", s.ExpectedTotal(), s.Missing())
	}
	if st := s.Stats(); st.Rejected != 2 || st.Received != 3 {
		t.Fatalf("stats %+v", st)
	}
}

func TestSession_RecordLen(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 3500, 1000, false)
	full, last := len(dgs[1]), len(dgs[4])
	if full != wire.DataRecordLen(36, 1000) || last >= full {
		t.Fatalf("datagram lengths: full %d, last %d", full, last)
	}

	// Only the short final datagram arrived.
	s := receive.NewSession(sealer, nil)
	for _, dg := range dgs {
		if wire.Classify(dg) == wire.KindData && seqOf(t, dg) < 4 {
			continue
		}
		_, _ = s.Ingest(dg)
	}
	if got := s.RecordLen(0); got != last {
		t.Fatalf("RecordLen(0) = %d, want %d", got, last)
	}
	if got := s.RecordLen(1000); got != full {
		t.Fatalf("RecordLen(1000) = %d, want %d", got, full)
	}

	// A full-size datagram seen: the hint is not needed.
	s = receive.NewSession(sealer, nil)
	for _, dg := range dgs {
		_, _ = s.Ingest(dg)
	}
	if got := s.RecordLen(64); got != full {
		t.Fatalf("RecordLen(64) = %d, want %d", got, full)
	}
}

func TestSession_DuplicatesAndReordering(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 3000, 1000, false)
	s := receive.NewSession(sealer, nil)

	// reverse order, every datagram twice
	for i := len(dgs) - 1; i >= 0; i-- {
		_, _ = s.Ingest(dgs[i])
		_, _ = s.Ingest(dgs[i])
	}
	if s.Len() != 3 || !s.Complete() {
		t.Fatalf("Len = %d, Missing = %v", s.Len(), s.Missing())
	}
	st := s.Stats()
	if st.Received != 3 || st.Duplicates != 3 {
		t.Fatalf("stats %+v", st)
	}
	var prev domain.Sequence
	for seq := range s.Ordered() {
		if seq <= prev {
			t.Fatalf("Ordered not ascending: %d after %d", seq, prev)
		}
		prev = seq
	}
}

func TestSession_CorruptPacketStaysMissing(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 3000, 1000, false)
	s := receive.NewSession(sealer, nil)
	for _, dg := range dgs {
		if wire.Classify(dg) == wire.KindData && seqOf(t, dg) == 2 {
			bad := append([]byte(nil), dg...)
			bad[len(bad)-1] ^= 0x80
			if _, err := s.Ingest(bad); !errors.Is(err, domain.ErrIntegrity) {
				t.Fatalf("want ErrIntegrity, got %v", err)
			}
			continue
		}
		_, _ = s.Ingest(dg)
	}
	if got := s.Missing(); !slices.Equal(got, []domain.Sequence{2}) {
		t.Fatalf("Missing = %v, want [2]", got)
	}
	if s.Stats().Rejected != 1 {
		t.Fatalf("Rejected = %d", s.Stats().Rejected)
	}
}

func TestSession_ForeignTransferDropped(t *testing.T) {
	sealer := newSealer(t)
	_, ours := stream(t, sealer, 2000, 1000, false)
	_, theirs := stream(t, sealer, 3000, 1000, false)
	s := receive.NewSession(sealer, nil)

	// a stray packet from another transfer arrives before our metadata
	_, _ = s.Ingest(theirs[3])
	for _, dg := range ours {
		_, _ = s.Ingest(dg)
	}
	_, err := s.Ingest(theirs[2])
	if !errors.Is(err, receive.ErrForeignPacket) {
		t.Fatalf("want ErrForeignPacket, got %v", err)
	}
	if s.Len() != 2 || s.ExpectedTotal() != 2 || !s.Complete() {
		t.Fatalf("Len = %d, ExpectedTotal = %d", s.Len(), s.ExpectedTotal())
	}
}

func TestSession_MissingMatchesDifference(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 20*100, 100, true)
	keep := map[domain.Sequence]bool{1: true, 2: true, 5: true, 11: true, 19: true}
	s := receive.NewSession(sealer, nil)
	for _, dg := range dgs {
		if wire.Classify(dg) == wire.KindData && !keep[seqOf(t, dg)] {
			continue
		}
		_, _ = s.Ingest(dg)
	}
	var want []domain.Sequence
	for seq := domain.Sequence(1); seq <= 20; seq++ {
		if !keep[seq] {
			want = append(want, seq)
		}
	}
	if got := s.Missing(); !slices.Equal(got, want) {
		t.Fatalf("Missing = %v, want %v", got, want)
	}
}

func loopback(t *testing.T) (net.PacketConn, net.Conn) {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	out, err := net.Dial("udp4", pc.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = out.Close() })
	return pc, out
}

func TestListener_RunsToSentinel(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 4000, 1000, false)
	pc, out := loopback(t)
	for _, dg := range dgs {
		if _, err := out.Write(dg); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	s := receive.NewSession(sealer, nil)
	l := &receive.Listener{Conn: pc, Session: s, ReadTimeout: 50 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reason, err := l.Run(ctx)
	if err != nil || reason != receive.EndSentinel {
		t.Fatalf("Run = %v, %v", reason, err)
	}
	if s.Len() != 4 || s.RecordLen(0) != len(dgs[1]) {
		t.Fatalf("Len = %d, RecordLen = %d", s.Len(), s.RecordLen(0))
	}
}

func TestListener_IdleTimeout(t *testing.T) {
	sealer := newSealer(t)
	_, dgs := stream(t, sealer, 2000, 1000, false)
	pc, out := loopback(t)
	for _, dg := range dgs[:len(dgs)-1] {
		_, _ = out.Write(dg)
	}
	l := &receive.Listener{
		Conn:        pc,
		Session:     receive.NewSession(sealer, nil),
		ReadTimeout: 20 * time.Millisecond,
		IdleTimeout: 100 * time.Millisecond,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if reason, err := l.Run(ctx); err != nil || reason != receive.EndIdle {
		t.Fatalf("Run = %v, %v", reason, err)
	}
}

func TestListener_StopsOnCancel(t *testing.T) {
	pc, _ := loopback(t)
	l := &receive.Listener{Conn: pc, Session: receive.NewSession(newSealer(t), nil), ReadTimeout: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	if reason, err := l.Run(ctx); err != nil || reason != receive.EndStopped {
		t.Fatalf("Run = %v, %v", reason, err)
	}
}
