// Package cache holds what a sender multicast, so the repair server can
// replay it byte for byte.
//
// A Builder is filled by the transmit loop and frozen once the sentinel has
// gone out. The resulting Sent is immutable; any number of repair sessions
// may read it concurrently without locking.
package cache
