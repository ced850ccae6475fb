// Package receive owns the receiver side of one transfer.
//
// Contents
//
//   - Session: the verified-packet store, transfer metadata, expected total
//     and gap set for exactly one transfer (Ingest, Merge, Missing, Ordered)
//   - Listener: the blocking multicast read loop feeding a Session until the
//     sentinel, an idle timeout, or cancellation
//
// # Notes
//
// A Session is owned by a single goroutine. The listener fills it first, the
// repair client merges into it afterwards; nothing else touches it, so it
// carries no lock.
//
// Packets that fail verification are dropped and simply stay in the gap set.
package receive
