package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"securecast/internal/domain"
)

// Classify reports what kind of multicast datagram b is.
func Classify(b []byte) Kind {
	switch {
	case string(b) == Sentinel:
		return KindSentinel
	case bytes.HasPrefix(b, []byte(MetadataMagic)), bytes.HasPrefix(b, []byte(ExtendedMetadataMagic)):
		return KindMetadata
	case len(b) >= MinDataSize:
		return KindData
	}
	return KindInvalid
}

// AppendData appends sequence + sealed blob (iv | ciphertext | digest) to dst.
func AppendData(dst []byte, seq domain.Sequence, blob []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(seq))
	return append(dst, blob...)
}

// SplitData separates the transport sequence number from the sealed blob
// (iv | ciphertext | digest). The blob aliases b.
func SplitData(b []byte) (domain.Sequence, []byte, error) {
	if len(b) < MinDataSize {
		return 0, nil, fmt.Errorf("data datagram of %d bytes: %w", len(b), domain.ErrMalformed)
	}
	if ct := len(b) - SequenceSize - IVSize - DigestSize; ct%BlockSize != 0 {
		return 0, nil, fmt.Errorf("ciphertext of %d bytes: %w", ct, domain.ErrMalformed)
	}
	return domain.Sequence(binary.BigEndian.Uint32(b[:SequenceSize])), b[SequenceSize:], nil
}
