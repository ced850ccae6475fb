package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"securecast/internal/domain"
)

// PacketHeaderLen is the size of the plaintext packet header for fileID.
func PacketHeaderLen(fileID string) int { return 2 + len(fileID) + 4 }

// DataRecordLen is the length of a data datagram carrying a full chunk for a
// file id of idLen bytes: PKCS#7 always adds between 1 and 16 bytes.
func DataRecordLen(idLen, chunk int) int {
	pt := 2 + idLen + 4 + chunk
	return SequenceSize + IVSize + (pt/BlockSize+1)*BlockSize + DigestSize
}

// EncodePacket frames a chunk before encryption.
func EncodePacket(p domain.PlaintextPacket) ([]byte, error) {
	if len(p.FileID) > math.MaxUint16 {
		return nil, fmt.Errorf("file id of %d bytes: %w", len(p.FileID), domain.ErrMalformed)
	}
	out := make([]byte, 0, PacketHeaderLen(p.FileID)+len(p.Payload))
	out = binary.BigEndian.AppendUint16(out, uint16(len(p.FileID)))
	out = append(out, p.FileID...)
	out = binary.BigEndian.AppendUint32(out, p.LogicalIndex)
	return append(out, p.Payload...), nil
}

// DecodePacket parses a decrypted plaintext packet. Payload aliases b.
func DecodePacket(b []byte) (domain.PlaintextPacket, error) {
	if len(b) < 6 {
		return domain.PlaintextPacket{}, fmt.Errorf("packet of %d bytes: %w", len(b), domain.ErrMalformed)
	}
	idLen := int(binary.BigEndian.Uint16(b[:2]))
	if len(b) < PacketHeaderLen("")+idLen {
		return domain.PlaintextPacket{}, fmt.Errorf("packet header truncated: %w", domain.ErrMalformed)
	}
	return domain.PlaintextPacket{
		FileID:       string(b[2 : 2+idLen]),
		LogicalIndex: binary.BigEndian.Uint32(b[2+idLen : 6+idLen]),
		Payload:      b[6+idLen:],
	}, nil
}
