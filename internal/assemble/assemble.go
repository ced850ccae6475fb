// Package assemble writes a received transfer to disk.
package assemble

import (
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"securecast/internal/domain"
	"securecast/internal/store"
	"securecast/internal/wire"
)

// OutputName reduces the announced filename to a safe base name inside the
// output directory, falling back to the file id.
func OutputName(meta domain.MetadataDatagram) string {
	name := filepath.Base(filepath.Clean(strings.ReplaceAll(meta.Filename, `\`, "/")))
	switch name {
	case ".", "..", "/", "":
		name = meta.FileID
	}
	if name == "" {
		name = "transfer"
	}
	return name
}

// WriteFile strips the packet header from each plaintext in ascending order
// and writes the payloads to dir. The file appears atomically under its
// final name. It returns the path and the number of bytes written.
func WriteFile(dir string, meta *domain.MetadataDatagram, packets iter.Seq2[domain.Sequence, []byte]) (string, int64, error) {
	if meta == nil {
		return "", 0, domain.ErrMetadataMissing
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, OutputName(*meta))

	var n int64
	err := store.WriteAtomic(path, 0o644, func(w io.Writer) error {
		for seq, pt := range packets {
			pkt, err := wire.DecodePacket(pt)
			if err != nil {
				return fmt.Errorf("packet %d: %w", seq, err)
			}
			m, err := w.Write(pkt.Payload)
			n += int64(m)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", n, err
	}
	return path, n, nil
}
