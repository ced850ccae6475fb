package domain

import (
	interfaces "securecast/internal/domain/interfaces"
	types "securecast/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Sequence         = types.Sequence
	MetadataDatagram = types.MetadataDatagram
	PlaintextPacket  = types.PlaintextPacket
	SessionKey       = types.SessionKey
	Endpoint         = types.Endpoint
	SessionMetadata  = types.SessionMetadata
	TransferState    = types.TransferState
	HandshakeState   = types.HandshakeState
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	PacketCache = interfaces.PacketCache
	Sink        = interfaces.Sink
	SpoolStore  = interfaces.SpoolStore
)

const FirstSequence = types.FirstSequence

// Transfer states.
const (
	StateIdle        = types.StateIdle
	StateHandshaking = types.StateHandshaking
	StateStreaming   = types.StateStreaming
	StateRepairing   = types.StateRepairing
	StateAssembling  = types.StateAssembling
	StateComplete    = types.StateComplete
	StateFailed      = types.StateFailed
)

// Receiver handshake states.
const (
	HandshakeListening        = types.HandshakeListening
	HandshakeAccepted         = types.HandshakeAccepted
	HandshakeSentPubKey       = types.HandshakeSentPubKey
	HandshakeKeyReceived      = types.HandshakeKeyReceived
	HandshakeReadySent        = types.HandshakeReadySent
	HandshakeMetadataReceived = types.HandshakeMetadataReceived
	HandshakeClosed           = types.HandshakeClosed
)

// ParseEndpoint parses "host:port".
func ParseEndpoint(s string) (Endpoint, error) { return types.ParseEndpoint(s) }

// MustSessionKey panics if b is not exactly 32 bytes.
func MustSessionKey(b []byte) SessionKey { return types.MustSessionKey(b) }
