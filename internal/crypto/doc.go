// Package crypto exposes the primitives securecast is built on.
//
// Contents
//
//   - RSA-2048 key pairs for the handshake, PEM SubjectPublicKeyInfo
//     encoding (GenerateKeyPair, MarshalPublicKey, ParsePublicKey)
//   - Session key wrapping with RSA-OAEP/SHA-256 (WrapKey, UnwrapKey)
//   - Per-packet sealing: AES-256-CBC with PKCS#7 padding and a fresh IV,
//     followed by a 32-byte BLAKE2b-256 tag (Sealer)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Two tag modes share one wire layout. IntegrityDigest hashes the plaintext
// and only detects corruption. IntegrityKeyed is a keyed BLAKE2b over
// iv||ciphertext with a MAC key derived from the session key by HKDF-SHA256,
// and also detects forgery. Sender and receivers must agree on the mode.
//
// Every Open failure is reported as domain.ErrIntegrity so callers can treat
// the packet as never received.
package crypto
