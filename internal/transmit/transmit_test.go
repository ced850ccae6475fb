package transmit_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/transmit"
	"securecast/internal/wire"
)

type captureSink struct{ out [][]byte }

func (c *captureSink) Send(b []byte) error {
	c.out = append(c.out, append([]byte(nil), b...))
	return nil
}

type failingSink struct{ after int }

func (f *failingSink) Send([]byte) error {
	if f.after == 0 {
		return errors.New("network down")
	}
	f.after--
	return nil
}

func newSealer(t *testing.T) (*crypto.Sealer, domain.SessionKey) {
	t.Helper()
	key, err := crypto.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	s, err := crypto.NewSealer(key, crypto.IntegrityDigest)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return s, key
}

func TestSend_TenChunks(t *testing.T) {
	src := make([]byte, 10000)
	_, _ = rand.Read(src)
	sealer, _ := newSealer(t)
	sink := &captureSink{}

	tx, err := transmit.New(sink, sealer, transmit.Config{ChunkSize: 1000}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tx.NewTransferID = func() string { return "fixed-id" }

	sent, sum, err := tx.Send(context.Background(), transmit.Source{Reader: bytes.NewReader(src), Filename: "/tmp/dir/data.bin", Size: int64(len(src))})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sink.out) != 12 {
		t.Fatalf("datagrams = %d, want 12", len(sink.out))
	}
	if sum.Packets != 10 || sum.Bytes != 10000 || sent.Len() != 10 {
		t.Fatalf("summary %+v, cache %d", sum, sent.Len())
	}

	meta, err := wire.DecodeMetadata(sink.out[0])
	if err != nil {
		t.Fatalf("first datagram is not metadata: %v", err)
	}
	if meta.FileID != "fixed-id" || meta.Filename != "data.bin" || meta.Total != 0 {
		t.Fatalf("metadata %+v", meta)
	}
	if string(sink.out[11]) != wire.Sentinel {
		t.Fatalf("last datagram %q, want sentinel", sink.out[11])
	}

	var got []byte
	for i, dg := range sink.out[1:11] {
		seq, blob, err := wire.SplitData(dg)
		if err != nil {
			t.Fatalf("SplitData: %v", err)
		}
		if seq != domain.Sequence(i+1) {
			t.Fatalf("datagram %d has seq %d", i, seq)
		}
		if cached, ok := sent.Lookup(seq); !ok || !bytes.Equal(cached, dg) {
			t.Fatalf("cache entry for %d differs from multicast bytes", seq)
		}
		pt, err := sealer.Open(blob)
		if err != nil {
			t.Fatalf("Open seq %d: %v", seq, err)
		}
		pkt, err := wire.DecodePacket(pt)
		if err != nil {
			t.Fatalf("DecodePacket: %v", err)
		}
		if pkt.FileID != "fixed-id" || pkt.LogicalIndex != uint32(seq) {
			t.Fatalf("packet header %+v", pkt)
		}
		got = append(got, pkt.Payload...)
	}
	if !bytes.Equal(got, src) {
		t.Fatal("reassembled payload differs from source")
	}
}

func TestSend_AnnounceAndRepeat(t *testing.T) {
	sealer, _ := newSealer(t)
	sink := &captureSink{}
	tx, err := transmit.New(sink, sealer, transmit.Config{ChunkSize: 100, AnnounceTotal: true, RepeatMetadata: true}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := bytes.Repeat([]byte("x"), 250)
	if _, _, err := tx.Send(context.Background(), transmit.Source{Reader: bytes.NewReader(src), Filename: "f", Size: 250}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// meta, 3 data, meta, EOF
	if len(sink.out) != 6 {
		t.Fatalf("datagrams = %d, want 6", len(sink.out))
	}
	for _, i := range []int{0, 4} {
		m, err := wire.DecodeMetadata(sink.out[i])
		if err != nil || m.Total != 3 {
			t.Fatalf("metadata at %d: %+v %v", i, m, err)
		}
	}
}

func TestSend_EmptyFile(t *testing.T) {
	sealer, _ := newSealer(t)
	sink := &captureSink{}
	tx, _ := transmit.New(sink, sealer, transmit.Config{}, nil)
	sent, _, err := tx.Send(context.Background(), transmit.Source{Reader: bytes.NewReader(nil), Filename: "empty", Size: 0})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sink.out) != 2 || sent.Len() != 0 {
		t.Fatalf("datagrams %d cache %d", len(sink.out), sent.Len())
	}
}

func TestSend_SinkFailureKeepsPartialCache(t *testing.T) {
	sealer, _ := newSealer(t)
	tx, _ := transmit.New(&failingSink{after: 3}, sealer, transmit.Config{ChunkSize: 10}, nil)
	sent, _, err := tx.Send(context.Background(), transmit.Source{Reader: bytes.NewReader(make([]byte, 100)), Filename: "f", Size: 100})
	if err == nil {
		t.Fatal("expected send error")
	}
	// metadata + seq 1, 2 went out; seq 3 was cached before the failed send.
	if sent.Len() != 3 {
		t.Fatalf("cache len %d, want 3", sent.Len())
	}
}

func TestSend_Cancelled(t *testing.T) {
	sealer, _ := newSealer(t)
	tx, _ := transmit.New(&captureSink{}, sealer, transmit.Config{ChunkSize: 10, Rate: 1, Burst: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := tx.Send(ctx, transmit.Source{Reader: bytes.NewReader(make([]byte, 100)), Filename: "f", Size: 100}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
