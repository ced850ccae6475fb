package receiver_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/handshake"
	"securecast/internal/netutil"
	"securecast/internal/repair"
	"securecast/internal/services/receiver"
	"securecast/internal/services/sender"
	"securecast/internal/transmit"
	"securecast/internal/wire"
)

// droppingSink forwards datagrams over UDP, discarding chosen sequences.
type droppingSink struct {
	conn net.Conn
	drop map[domain.Sequence]bool
}

func (d *droppingSink) Send(b []byte) error {
	if wire.Classify(b) == wire.KindData {
		if seq, _, err := wire.SplitData(b); err == nil && d.drop[seq] {
			return nil
		}
	}
	_, err := d.conn.Write(b)
	return err
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestPipeline_DropAndRepair(t *testing.T) {
	for _, mode := range []crypto.Mode{crypto.IntegrityDigest, crypto.IntegrityKeyed} {
		t.Run(mode.String(), func(t *testing.T) { runPipeline(t, mode) })
	}
}

func runPipeline(t *testing.T, mode crypto.Mode) {
	dir := t.TempDir()
	src := make([]byte, 10000)
	_, _ = rand.Read(src)
	srcPath := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(srcPath, src, 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	udp, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	group := domain.Endpoint{Host: "127.0.0.1", Port: udp.LocalAddr().(*net.UDPAddr).Port}
	repairPort := freePort(t)

	hs, err := handshake.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("handshake.Listen: %v", err)
	}
	defer hs.Close()
	hsEP := domain.Endpoint{Host: "127.0.0.1", Port: hs.Addr().(*net.TCPAddr).Port}

	outDir := filepath.Join(dir, "out")
	rcv := receiver.New(receiver.Options{
		Group:            group,
		Integrity:        mode,
		IdleTimeout:      3 * time.Second,
		RepairPort:       repairPort,
		RepairRetryDelay: 50 * time.Millisecond,
		OutputDir:        outDir,
	}, nil)
	rcv.Listen = func(context.Context, domain.Endpoint, string) (net.PacketConn, error) { return udp, nil }

	snd := sender.New(sender.Options{
		GroupName:     "test group",
		Group:         group,
		Transmit:      transmit.Config{ChunkSize: 1000},
		Integrity:     mode,
		RepairAddr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(repairPort)),
		RepairMode:    repair.Multiplexed,
		RepairFraming: wire.Framed,
		RepairWindow:  10 * time.Second,
	}, nil, nil)
	snd.OpenSink = func(g domain.Endpoint, _ netutil.SenderOptions) (domain.Sink, io.Closer, error) {
		c, err := net.Dial("udp4", g.String())
		if err != nil {
			return nil, nil, err
		}
		return &droppingSink{conn: c, drop: map[domain.Sequence]bool{3: true, 7: true}}, c, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	type received struct {
		rep receiver.Report
		err error
	}
	done := make(chan received, 1)
	go func() {
		rep, err := rcv.ReceiveOn(ctx, hs)
		done <- received{rep, err}
	}()

	srep, err := snd.Send(ctx, srcPath, []domain.Endpoint{hsEP})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if srep.Ready != 1 || srep.Stream.Packets != 10 {
		t.Fatalf("sender report %+v", srep)
	}
	if srep.Repair.Reason != repair.EndAllComplete || srep.Repair.Served != 2 {
		t.Fatalf("repair summary %+v", srep.Repair)
	}

	got := <-done
	if got.err != nil {
		t.Fatalf("ReceiveOn: %v", got.err)
	}
	r := got.rep
	if r.State != domain.StateComplete || len(r.Missing) != 0 || r.Repair.Recovered != 2 {
		t.Fatalf("receiver report %+v", r)
	}
	if r.GroupName != "test group" || r.TransferID != srep.TransferID {
		t.Fatalf("report identity %+v", r)
	}
	out, err := os.ReadFile(filepath.Join(outDir, "payload.bin"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatal("received file differs from source")
	}
}
