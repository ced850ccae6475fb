package domain

import "errors"

// Failure taxonomy shared by every component. Callers match with errors.Is.
var (
	// ErrHandshake: the peer never became ready (bad key, wrong ack). Fatal to that peer only.
	ErrHandshake = errors.New("handshake failed")
	// ErrKeyUnwrap: OAEP padding or format mismatch while unwrapping the session key.
	ErrKeyUnwrap = errors.New("key unwrap failed")
	// ErrKeyTooLarge: the symmetric key does not fit the OAEP payload for the modulus.
	ErrKeyTooLarge = errors.New("key too large for modulus")
	// ErrIntegrity: digest mismatch or undecryptable packet; treat as never received.
	ErrIntegrity = errors.New("packet integrity check failed")
	// ErrRepairConnect: repair endpoint unreachable after all retries.
	ErrRepairConnect = errors.New("repair endpoint unreachable")
	// ErrMetadataMissing: no metadata datagram seen, the file cannot be named.
	ErrMetadataMissing = errors.New("transfer metadata missing")
	// ErrTransportBind: a socket could not be bound (port in use, permission).
	ErrTransportBind = errors.New("transport bind failed")
	// ErrStreamTruncated: a repair response ended inside a record.
	ErrStreamTruncated = errors.New("repair stream truncated")
	// ErrMalformed: bytes that do not parse as the expected message.
	ErrMalformed = errors.New("malformed message")
)
