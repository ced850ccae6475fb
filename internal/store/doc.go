// Package store provides file-based persistence for securecast.
//
// It holds the spool: the datagrams a sender multicast for a transfer,
// serialised as JSON under <home>/spool/<transfer-id>.json so a later
// serve-repair process can keep answering repair requests. Only ciphertext
// datagrams are spooled; no key material ever reaches disk.
//
// Writes go through WriteAtomic: a synced temp file renamed into place. The
// file assembler uses the same helper. Store methods are concurrency-safe
// via internal locking.
package store
