package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"securecast/internal/domain"
)

// Request is a parsed repair request: either a completion signal or the
// list of sequence numbers the receiver is missing.
type Request struct {
	Complete bool
	Missing  []domain.Sequence
}

// EncodeRequest renders the request line. An empty missing list is the
// completion signal.
func EncodeRequest(missing []domain.Sequence) []byte {
	if len(missing) == 0 {
		return []byte(CompleteMarker + "\n")
	}
	var sb strings.Builder
	for i, s := range missing {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(s), 10))
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

// ParseRequest parses a request line with or without its terminator.
func ParseRequest(b []byte) (Request, error) {
	line := strings.TrimSpace(string(b))
	if line == CompleteMarker {
		return Request{Complete: true}, nil
	}
	if line == "" {
		return Request{}, fmt.Errorf("empty repair request: %w", domain.ErrMalformed)
	}
	parts := strings.Split(line, ",")
	req := Request{Missing: make([]domain.Sequence, 0, len(parts))}
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return Request{}, fmt.Errorf("repair request entry %q: %w", p, domain.ErrMalformed)
		}
		req.Missing = append(req.Missing, domain.Sequence(n))
	}
	return req, nil
}

// WriteFrame writes one length-prefixed record.
func WriteFrame(w io.Writer, record []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(record)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(record)
	return err
}

// ReadFrame reads one length-prefixed record. It returns io.EOF only at a
// record boundary; a stream ending anywhere else is ErrStreamTruncated.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("frame header: %w", domain.ErrStreamTruncated)
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxDatagramSize {
		return nil, fmt.Errorf("frame of %d bytes: %w", n, domain.ErrMalformed)
	}
	rec := make([]byte, n)
	if _, err := io.ReadFull(r, rec); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("frame body: %w", domain.ErrStreamTruncated)
		}
		return nil, err
	}
	return rec, nil
}

// SplitUnframed cuts a raw concatenation of datagrams into records of
// recordLen bytes. Only the final record may be shorter, which holds when
// the sender replies in ascending sequence order and all chunks but the last
// are full.
func SplitUnframed(b []byte, recordLen int) [][]byte {
	if recordLen <= 0 || recordLen >= len(b) {
		if len(b) == 0 {
			return nil
		}
		return [][]byte{b}
	}
	out := make([][]byte, 0, len(b)/recordLen+1)
	for len(b) > 0 {
		n := min(recordLen, len(b))
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}
