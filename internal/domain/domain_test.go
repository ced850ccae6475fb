package domain_test

import (
	"bytes"
	"testing"

	"securecast/internal/domain"
)

func TestParseEndpoint(t *testing.T) {
	ep, err := domain.ParseEndpoint("224.1.1.1:5007")
	if err != nil {
		t.Fatalf("ParseEndpoint: %v", err)
	}
	if ep.Host != "224.1.1.1" || ep.Port != 5007 || ep.String() != "224.1.1.1:5007" {
		t.Fatalf("endpoint %+v", ep)
	}
	for _, bad := range []string{"224.1.1.1", "host:0", "host:70000", "host:x"} {
		if _, err := domain.ParseEndpoint(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestMustSessionKey(t *testing.T) {
	b := bytes.Repeat([]byte{7}, 32)
	k := domain.MustSessionKey(b)
	if !bytes.Equal(k.Slice(), b) {
		t.Fatalf("key bytes differ")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("short key did not panic")
		}
	}()
	domain.MustSessionKey(b[:16])
}

func TestStateNames(t *testing.T) {
	transfer := map[domain.TransferState]string{
		domain.StateIdle:        "idle",
		domain.StateHandshaking: "handshaking",
		domain.StateStreaming:   "streaming",
		domain.StateRepairing:   "repairing",
		domain.StateAssembling:  "assembling",
		domain.StateComplete:    "complete",
		domain.StateFailed:      "failed",
	}
	for st, want := range transfer {
		if st.String() != want {
			t.Fatalf("%d: %q, want %q", st, st.String(), want)
		}
	}

	handshake := []domain.HandshakeState{
		domain.HandshakeListening,
		domain.HandshakeAccepted,
		domain.HandshakeSentPubKey,
		domain.HandshakeKeyReceived,
		domain.HandshakeReadySent,
		domain.HandshakeMetadataReceived,
		domain.HandshakeClosed,
	}
	for i, st := range handshake {
		if int(st) != i {
			t.Fatalf("handshake state %s out of order", st)
		}
	}
}
