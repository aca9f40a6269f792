package xcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// StreamCipherKeySize is the width of the AES-128-CTR header keystream key.
const StreamCipherKeySize = 16

// StreamCipherIV is the fixed all-zero IV used for every header keystream
// generation. This is safe only because every key used with it is a fresh,
// single-use, per-hop stream_cipher_key derived by the key schedule; reusing
// a stream_cipher_key across packets would break confidentiality.
var StreamCipherIV = [StreamCipherKeySize]byte{}

// Keystream produces exactly length deterministic pseudorandom bytes under
// key, using AES-128-CTR with the fixed zero IV. Applying XOR with this
// output is both encryption and decryption.
func Keystream(key [StreamCipherKeySize]byte, length int) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("xcrypto: new aes cipher: %w", err)
	}
	stream := cipher.NewCTR(block, StreamCipherIV[:])
	out := make([]byte, length)
	stream.XORKeyStream(out, out)
	return out, nil
}

// XOR writes a XOR b into dst, for min(len(a), len(b)) bytes.
func XOR(dst, a, b []byte) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dst[i] = a[i] ^ b[i]
	}
}
