// Package sender runs the sending side of a transfer.
//
// It generates the session key, hands it to every receiver, streams the file
// over multicast, optionally spools the sent datagrams, and then serves the
// repair window until every ready receiver has reported completion or the
// window expires.
package sender
