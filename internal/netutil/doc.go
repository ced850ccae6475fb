// Package netutil opens the multicast sockets used by the transmitter and
// the receive loop.
//
// Receivers bind the group port with SO_REUSEADDR and SO_REUSEPORT where the
// platform has them, so several receivers can run on one host. Group
// membership, TTL and loopback are managed through golang.org/x/net/ipv4.
package netutil
