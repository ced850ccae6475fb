package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"securecast/internal/domain"
)

// EncodeMetadata builds a metadata datagram. When m.Total is non-zero the
// extended layout carrying the packet count is used.
func EncodeMetadata(m domain.MetadataDatagram) ([]byte, error) {
	if len(m.FileID) > math.MaxUint16 {
		return nil, fmt.Errorf("file id of %d bytes: %w", len(m.FileID), domain.ErrMalformed)
	}
	magic := MetadataMagic
	if m.Total > 0 {
		magic = ExtendedMetadataMagic
	}
	out := make([]byte, 0, 4+2+len(m.FileID)+4+len(m.Filename))
	out = append(out, magic...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(m.FileID)))
	out = append(out, m.FileID...)
	if m.Total > 0 {
		out = binary.BigEndian.AppendUint32(out, m.Total)
	}
	return append(out, m.Filename...), nil
}

// DecodeMetadata parses either metadata layout.
func DecodeMetadata(b []byte) (domain.MetadataDatagram, error) {
	if len(b) < 6 {
		return domain.MetadataDatagram{}, fmt.Errorf("metadata of %d bytes: %w", len(b), domain.ErrMalformed)
	}
	extended := false
	switch string(b[:4]) {
	case MetadataMagic:
	case ExtendedMetadataMagic:
		extended = true
	default:
		return domain.MetadataDatagram{}, fmt.Errorf("metadata magic %q: %w", b[:4], domain.ErrMalformed)
	}
	idLen := int(binary.BigEndian.Uint16(b[4:6]))
	rest := b[6:]
	if len(rest) < idLen {
		return domain.MetadataDatagram{}, fmt.Errorf("metadata file id truncated: %w", domain.ErrMalformed)
	}
	m := domain.MetadataDatagram{FileID: string(rest[:idLen])}
	rest = rest[idLen:]
	if extended {
		if len(rest) < 4 {
			return domain.MetadataDatagram{}, fmt.Errorf("metadata total truncated: %w", domain.ErrMalformed)
		}
		m.Total = binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
	}
	if !utf8.Valid(rest) || !utf8.ValidString(m.FileID) {
		return domain.MetadataDatagram{}, fmt.Errorf("metadata is not utf-8: %w", domain.ErrMalformed)
	}
	m.Filename = string(rest)
	return m, nil
}
