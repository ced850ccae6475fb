package cache_test

import (
	"sync"
	"testing"

	"securecast/internal/cache"
	"securecast/internal/domain"
)

func TestBuilder_FreezeIsFinal(t *testing.T) {
	b := cache.NewBuilder("xfer")
	buf := []byte("one")
	b.Add(1, buf)
	buf[0] = 'X'
	b.Add(3, []byte("three"))
	sent := b.Freeze()
	b.Add(2, []byte("late"))

	if sent.Len() != 2 {
		t.Fatalf("Len = %d, want 2", sent.Len())
	}
	if got, ok := sent.Lookup(1); !ok || string(got) != "one" {
		t.Fatalf("Lookup(1) = %q, %v", got, ok)
	}
	if _, ok := sent.Lookup(2); ok {
		t.Fatal("add after freeze was recorded")
	}
	if snap := sent.Snapshot(); len(snap) != 2 || string(snap[3]) != "three" {
		t.Fatalf("Snapshot = %q", snap)
	}
	if sent.TransferID() != "xfer" {
		t.Fatalf("TransferID = %q", sent.TransferID())
	}
}

func TestSent_ConcurrentReads(t *testing.T) {
	b := cache.NewBuilder("xfer")
	for i := domain.Sequence(1); i <= 100; i++ {
		b.Add(i, []byte{byte(i)})
	}
	var pc domain.PacketCache = b.Freeze()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := domain.Sequence(1); i <= 100; i++ {
				if got, ok := pc.Lookup(i); !ok || got[0] != byte(i) {
					t.Errorf("Lookup(%d) = %v, %v", i, got, ok)
					return
				}
			}
		}()
	}
	wg.Wait()
}
