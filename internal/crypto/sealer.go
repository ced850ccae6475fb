package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"securecast/internal/domain"
)

// Mode selects how the 32-byte tag after each ciphertext is computed.
type Mode int

const (
	// IntegrityDigest: BLAKE2b-256 of the plaintext.
	IntegrityDigest Mode = iota
	// IntegrityKeyed: keyed BLAKE2b-256 of iv||ciphertext.
	IntegrityKeyed
)

func (m Mode) String() string {
	if m == IntegrityKeyed {
		return "keyed"
	}
	return "digest"
}

// ParseMode accepts "digest" or "keyed".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "digest", "":
		return IntegrityDigest, true
	case "keyed":
		return IntegrityKeyed, true
	}
	return IntegrityDigest, false
}

const (
	ivSize  = aes.BlockSize
	tagSize = blake2b.Size256

	macInfo = "securecast integrity v1"
)

// Sealer encrypts and authenticates packets under one session key.
// It is safe for concurrent use.
type Sealer struct {
	block  cipher.Block
	mode   Mode
	macKey []byte
}

func NewSealer(key domain.SessionKey, mode Mode) (*Sealer, error) {
	block, err := aes.NewCipher(key.Slice())
	if err != nil {
		return nil, err
	}
	s := &Sealer{block: block, mode: mode}
	if mode == IntegrityKeyed {
		s.macKey = make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, key.Slice(), nil, []byte(macInfo)), s.macKey); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Mode reports the tag mode this sealer was built with.
func (s *Sealer) Mode() Mode { return s.mode }

// Overhead is the number of bytes Seal adds beyond the padded plaintext.
func (s *Sealer) Overhead() int { return ivSize + tagSize }

// Seal returns iv | AES-CBC(pkcs7(plaintext)) | tag.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, ivSize+len(padded), ivSize+len(padded)+tagSize)
	if _, err := rand.Read(out[:ivSize]); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(s.block, out[:ivSize]).CryptBlocks(out[ivSize:], padded)
	Wipe(padded)

	var tag [tagSize]byte
	switch s.mode {
	case IntegrityKeyed:
		tag = s.mac(out)
	default:
		tag = blake2b.Sum256(plaintext)
	}
	return append(out, tag[:]...), nil
}

// Open verifies and decrypts a blob produced by Seal.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if len(blob) < ivSize+aes.BlockSize+tagSize {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrIntegrity, len(blob))
	}
	body, tag := blob[:len(blob)-tagSize], blob[len(blob)-tagSize:]
	iv, ct := body[:ivSize], body[ivSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block aligned", domain.ErrIntegrity)
	}
	if s.mode == IntegrityKeyed {
		want := s.mac(body)
		if !hmac.Equal(want[:], tag) {
			return nil, fmt.Errorf("%w: tag mismatch", domain.ErrIntegrity)
		}
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(pt, ct)
	pt, err := unpad(pt, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIntegrity, err)
	}
	if s.mode == IntegrityDigest {
		sum := blake2b.Sum256(pt)
		if !hmac.Equal(sum[:], tag) {
			return nil, fmt.Errorf("%w: digest mismatch", domain.ErrIntegrity)
		}
	}
	return pt, nil
}

// Close wipes derived key material.
func (s *Sealer) Close() { Wipe(s.macKey) }

func (s *Sealer) mac(b []byte) [tagSize]byte {
	h, _ := blake2b.New256(s.macKey)
	h.Write(b)
	var out [tagSize]byte
	h.Sum(out[:0])
	return out
}

// EncryptPacket seals plaintext with a one-off digest-mode sealer.
func EncryptPacket(key domain.SessionKey, plaintext []byte) ([]byte, error) {
	s, err := NewSealer(key, IntegrityDigest)
	if err != nil {
		return nil, err
	}
	return s.Seal(plaintext)
}

// DecryptPacket opens a blob produced by EncryptPacket.
func DecryptPacket(key domain.SessionKey, blob []byte) ([]byte, error) {
	s, err := NewSealer(key, IntegrityDigest)
	if err != nil {
		return nil, err
	}
	return s.Open(blob)
}
