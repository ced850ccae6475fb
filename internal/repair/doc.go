// Package repair implements pull-based retransmission over TCP.
//
// A receiver that found gaps connects to the sender's repair port, writes the
// missing sequence numbers as one comma-separated line, half-closes, and
// reads back the cached datagrams, framed (u32 length prefix) or unframed.
// A receiver with no gaps writes "COMPLETE" instead.
//
// Coordinator (sender side)
//
//   - Sequential: accept, serve, close, repeat.
//   - Multiplexed: every accepted connection is served by its own goroutine
//     parked on the runtime network poller; each owns a Session value that
//     no other connection can reach. Results come back over a channel to the
//     single loop that owns the window and the completion count.
//
// The window closes when Receivers completion signals have arrived or the
// wall-clock Window elapses, whichever comes first. Requested sequence
// numbers the cache does not hold are skipped.
//
// Client (receiver side) retries the connection with a fixed delay, merges
// what comes back into the receive.Session, and repeats for up to Rounds
// rounds. Once the gap set is empty it reports completion on a fresh
// connection.
package repair
