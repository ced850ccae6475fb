package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"securecast/internal/domain"
)

// KeyBits is the RSA modulus size used for handshake key pairs.
const KeyBits = 2048

// GenerateKeyPair returns a fresh RSA key pair. A receiver makes one per
// handshake; the private half never leaves the process.
func GenerateKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, nil, err
	}
	return priv, &priv.PublicKey, nil
}

// MarshalPublicKey encodes pub as a PEM "PUBLIC KEY" block.
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParsePublicKey decodes a PEM SubjectPublicKeyInfo RSA key.
func ParsePublicKey(b []byte) (*rsa.PublicKey, error) {
	blk, _ := pem.Decode(b)
	if blk == nil || blk.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("public key: no PEM block: %w", domain.ErrMalformed)
	}
	k, err := x509.ParsePKIXPublicKey(blk.Bytes)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key: not RSA: %w", domain.ErrMalformed)
	}
	return pub, nil
}

// MaxWrapSize is the largest payload OAEP/SHA-256 can carry under pub.
func MaxWrapSize(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

// WrapKey encrypts the session key to pub with RSA-OAEP (SHA-256, MGF1-SHA-256).
func WrapKey(pub *rsa.PublicKey, key domain.SessionKey) ([]byte, error) {
	if len(key) > MaxWrapSize(pub) {
		return nil, domain.ErrKeyTooLarge
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key.Slice(), nil)
	if errors.Is(err, rsa.ErrMessageTooLong) {
		return nil, domain.ErrKeyTooLarge
	}
	return ct, err
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(priv *rsa.PrivateKey, wrapped []byte) (domain.SessionKey, error) {
	pt, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: %v", domain.ErrKeyUnwrap, err)
	}
	defer Wipe(pt)
	if len(pt) != len(domain.SessionKey{}) {
		return domain.SessionKey{}, fmt.Errorf("%w: key of %d bytes", domain.ErrKeyUnwrap, len(pt))
	}
	return domain.MustSessionKey(pt), nil
}

// NewSessionKey draws a random AES-256 key.
func NewSessionKey() (domain.SessionKey, error) {
	var k domain.SessionKey
	if _, err := rand.Read(k[:]); err != nil {
		return domain.SessionKey{}, err
	}
	return k, nil
}
