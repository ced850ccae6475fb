package crypto

import (
	"crypto/subtle"

	"securecast/internal/domain"
)

// Wipe zeroes b. The copy goes through subtle so the compiler keeps it.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// WipeKey zeroes a session key in place.
func WipeKey(k *domain.SessionKey) { Wipe(k[:]) }
