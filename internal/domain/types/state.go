package types

// TransferState is the session-wide state of one transfer, on either side.
type TransferState int

const (
	StateIdle TransferState = iota
	StateHandshaking
	StateStreaming
	StateRepairing
	StateAssembling
	StateComplete
	StateFailed
)

func (s TransferState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	case StateRepairing:
		return "repairing"
	case StateAssembling:
		return "assembling"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// HandshakeState tracks the receiver side of the key exchange.
//
//	LISTENING -> ACCEPTED -> SENT_PUBKEY -> KEY_RECEIVED -> READY_SENT
//	  -> (METADATA_RECEIVED) -> CLOSED
type HandshakeState int

const (
	HandshakeListening HandshakeState = iota
	HandshakeAccepted
	HandshakeSentPubKey
	HandshakeKeyReceived
	HandshakeReadySent
	HandshakeMetadataReceived
	HandshakeClosed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeListening:
		return "LISTENING"
	case HandshakeAccepted:
		return "ACCEPTED"
	case HandshakeSentPubKey:
		return "SENT_PUBKEY"
	case HandshakeKeyReceived:
		return "KEY_RECEIVED"
	case HandshakeReadySent:
		return "READY_SENT"
	case HandshakeMetadataReceived:
		return "METADATA_RECEIVED"
	case HandshakeClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}
