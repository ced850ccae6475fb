// Package wire (de)serializes every byte sequence securecast puts on a socket.
//
// Multicast datagrams (big-endian throughout)
//
//	metadata   "META" | file_id_len u16 | file_id | filename
//	metadata+  "METT" | file_id_len u16 | file_id | total u32 | filename
//	data       sequence u32 | iv(16) | ciphertext | digest(32)
//	sentinel   "EOF"
//
// Inside each ciphertext sits a plaintext packet:
//
//	file_id_len u16 | file_id | logical_index u32 | payload
//
// Repair stream (TCP)
//
//	request    "COMPLETE" | "3,7,12" , terminated by '\n' or end of stream
//	response   framed: length u32 | data datagram, repeated
//	           unframed: data datagrams back to back
//
// Handshake stream (TCP)
//
//	receiver -> PEM public key ending in "-----END PUBLIC KEY-----"
//	sender   -> OAEP-wrapped session key (modulus size bytes)
//	receiver -> "READY"
//	sender   -> optional "group_name,multicast_address,multicast_port\n"
//
// # Notes
//
// Decoders never panic on short or hostile input; they return an error
// wrapping domain.ErrMalformed (or domain.ErrStreamTruncated for framed reads).
package wire
