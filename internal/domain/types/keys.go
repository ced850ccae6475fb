package types

import "fmt"

// SessionKey is the symmetric key shared by the sender with every receiver
// of one transfer (AES-256).
type SessionKey [32]byte

func (k SessionKey) Slice() []byte { return k[:] }

// MustSessionKey panics if b is not exactly 32 bytes.
func MustSessionKey(b []byte) SessionKey {
	if len(b) != 32 {
		panic(fmt.Errorf("session key: want 32 bytes, got %d", len(b)))
	}
	var out SessionKey
	copy(out[:], b)
	return out
}
