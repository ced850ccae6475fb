package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"securecast/internal/domain"
)

// maxPublicKeySize bounds how much a sender reads while looking for the
// PEM trailer; a 4096-bit SPKI PEM is well under 1 KiB.
const maxPublicKeySize = 16 << 10

// ReadPublicKey reads a PEM block line by line until the trailer marker.
func ReadPublicKey(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		line, err := r.ReadBytes('\n')
		buf.Write(line)
		if bytes.Contains(buf.Bytes(), []byte(PublicKeyTrailer)) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
		if buf.Len() > maxPublicKeySize {
			return nil, fmt.Errorf("public key exceeds %d bytes: %w", maxPublicKeySize, domain.ErrMalformed)
		}
	}
}

// EncodeMetadataLine renders "group_name,multicast_address,multicast_port\n".
func EncodeMetadataLine(m domain.SessionMetadata) []byte {
	return []byte(fmt.Sprintf("%s,%s,%d\n", m.GroupName, m.Group.Host, m.Group.Port))
}

// ParseMetadataLine parses the handshake metadata line. The group name may
// itself contain commas; address and port are taken from the right.
func ParseMetadataLine(s string) (domain.SessionMetadata, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ',')
	if i < 0 {
		return domain.SessionMetadata{}, fmt.Errorf("metadata line %q: %w", s, domain.ErrMalformed)
	}
	j := strings.LastIndexByte(s[:i], ',')
	if j < 0 {
		return domain.SessionMetadata{}, fmt.Errorf("metadata line %q: %w", s, domain.ErrMalformed)
	}
	port, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err != nil || port <= 0 || port > 65535 {
		return domain.SessionMetadata{}, fmt.Errorf("metadata line port %q: %w", s[i+1:], domain.ErrMalformed)
	}
	host := strings.TrimSpace(s[j+1 : i])
	if host == "" {
		return domain.SessionMetadata{}, fmt.Errorf("metadata line without address: %w", domain.ErrMalformed)
	}
	return domain.SessionMetadata{
		GroupName: s[:j],
		Group:     domain.Endpoint{Host: host, Port: port},
	}, nil
}
