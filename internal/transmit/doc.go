// Package transmit streams one file over multicast.
//
// Stream order: metadata, data datagrams with sequence 1..N, optionally the
// metadata again, then the "EOF" sentinel. Nothing is acknowledged; every
// data datagram is recorded in a cache.Builder so the repair coordinator can
// replay it after the stream ends.
//
// Pacing is a token bucket (golang.org/x/time/rate) rather than fixed sleeps.
package transmit
