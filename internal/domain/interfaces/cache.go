package interfaces

import domaintypes "securecast/internal/domain/types"

// PacketCache is the read-only view of what a sender multicast, keyed by
// transport sequence number. Implementations must allow concurrent reads.
type PacketCache interface {
	TransferID() string
	Lookup(seq domaintypes.Sequence) ([]byte, bool)
	Len() int
}

// Sink accepts outbound datagrams, one call per datagram.
type Sink interface {
	Send(datagram []byte) error
}
