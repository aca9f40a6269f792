package xcrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Tag computes the HMAC-SHA256 of data under key, returning the full
// 32-byte output. Callers that need a shorter MAC truncate the result
// themselves (spec-mandated truncation to sigma bytes).
func Tag(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// Expand derives a domain-separated tag-keyed HMAC over secret: this is
// the deployment-frozen construction used to turn one Diffie-Hellman
// shared secret into several independent-looking keys (stream cipher key,
// header MAC key), each bound to a short ASCII tag.
func Expand(tag []byte, secret []byte) []byte {
	return Tag(tag, secret)
}

// ExpandHKDF expands secret into n bytes of key material using
// HKDF-SHA256 with the given domain-separation info string. Used for
// deriving payload keys, which are wider than a single HMAC-SHA256 block,
// and the 64-byte blinding factor seed.
func ExpandHKDF(secret []byte, info []byte, n int) ([]byte, error) {
	kdf := hkdf.New(sha256.New, secret, nil, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(kdf, out); err != nil {
		return nil, fmt.Errorf("xcrypto: hkdf expand: %w", err)
	}
	return out, nil
}

// ConstantTimeEqual reports whether a and b hold identical bytes, in time
// independent of where they first differ. MAC verification on the unwrap
// path MUST use this instead of bytes.Equal/bytes.Compare.
func ConstantTimeEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}
