package cache

import (
	"sync"

	"securecast/internal/domain"
)

// Builder accumulates datagrams during transmission.
type Builder struct {
	mu         sync.Mutex
	transferID string
	packets    map[domain.Sequence][]byte
	frozen     bool
}

func NewBuilder(transferID string) *Builder {
	return &Builder{transferID: transferID, packets: make(map[domain.Sequence][]byte)}
}

// Add records the exact bytes multicast under seq. The slice is copied.
// Adds after Freeze are ignored.
func (b *Builder) Add(seq domain.Sequence, datagram []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return
	}
	b.packets[seq] = append([]byte(nil), datagram...)
}

// Freeze ends the build and hands the map to an immutable Sent.
func (b *Builder) Freeze() *Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
	return &Sent{transferID: b.transferID, packets: b.packets}
}

// Sent is the frozen cache of one transfer. It implements domain.PacketCache.
type Sent struct {
	transferID string
	packets    map[domain.Sequence][]byte
}

var _ domain.PacketCache = (*Sent)(nil)

// FromMap wraps packets loaded from a spool. The map is not copied.
func FromMap(transferID string, packets map[domain.Sequence][]byte) *Sent {
	if packets == nil {
		packets = make(map[domain.Sequence][]byte)
	}
	return &Sent{transferID: transferID, packets: packets}
}

func (s *Sent) TransferID() string { return s.transferID }

func (s *Sent) Len() int { return len(s.packets) }

// Lookup returns the cached datagram for seq. Callers must not modify it.
func (s *Sent) Lookup(seq domain.Sequence) ([]byte, bool) {
	b, ok := s.packets[seq]
	return b, ok
}

// Snapshot returns the underlying map for persistence.
func (s *Sent) Snapshot() map[domain.Sequence][]byte { return s.packets }
