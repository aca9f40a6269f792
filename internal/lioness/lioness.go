// Package lioness implements the Lioness wide-block cipher: a 4-round
// unbalanced Feistel network built from a keyed hash (Blake2b-256) and a
// stream cipher (ChaCha20), the construction the onion payload is wrapped
// in one layer per hop. Block size equals the whole buffer handed to
// Encrypt/Decrypt; changing a single input byte at any layer flips, on
// average, half the output bytes of every later layer (the payload
// integrity beacon relies on this avalanche).
package lioness

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
)

// hashSize is also the width of the cipher's "short" half (L) and of each
// of the four round keys sliced out of the raw key.
const hashSize = blake2b.Size256

// RAW_KEY_SIZE: two hash round keys plus two stream-cipher round keys.
const RawKeySize = 4 * hashSize

// ErrBlockTooShort is returned when the buffer handed to Encrypt/Decrypt
// is below the cipher's minimum block size (it must be prevented upstream
// by a fixed PAYLOAD_SIZE invariant; this is a programmer-error guard,
// not a runtime condition callers are expected to hit).
var ErrBlockTooShort = errors.New("lioness: block shorter than minimum")

// Cipher is a Lioness instance keyed with a RawKeySize-byte raw key.
type Cipher struct {
	k1, k2, k3, k4 [hashSize]byte
}

// New builds a Cipher from the first RawKeySize bytes of rawKey.
func New(rawKey []byte) (*Cipher, error) {
	if len(rawKey) < RawKeySize {
		return nil, fmt.Errorf("lioness: raw key must be at least %d bytes, got %d", RawKeySize, len(rawKey))
	}
	c := &Cipher{}
	copy(c.k1[:], rawKey[0*hashSize:1*hashSize])
	copy(c.k2[:], rawKey[1*hashSize:2*hashSize])
	copy(c.k3[:], rawKey[2*hashSize:3*hashSize])
	copy(c.k4[:], rawKey[3*hashSize:4*hashSize])
	return c, nil
}

// Encrypt transforms buf in place, length-preserving.
func (c *Cipher) Encrypt(buf []byte) error {
	l, r, err := split(buf)
	if err != nil {
		return err
	}

	if err := streamRound(l, r, c.k1); err != nil {
		return err
	}
	hashRound(l, r, c.k2)
	if err := streamRound(l, r, c.k3); err != nil {
		return err
	}
	hashRound(l, r, c.k4)
	return nil
}

// Decrypt reverses Encrypt, in place, length-preserving.
func (c *Cipher) Decrypt(buf []byte) error {
	l, r, err := split(buf)
	if err != nil {
		return err
	}

	hashRound(l, r, c.k4)
	if err := streamRound(l, r, c.k3); err != nil {
		return err
	}
	hashRound(l, r, c.k2)
	if err := streamRound(l, r, c.k1); err != nil {
		return err
	}
	return nil
}

// split returns the short left half and the long right half of buf as
// slices aliasing its backing array, so rounds mutate buf directly.
func split(buf []byte) (l, r []byte, err error) {
	if len(buf) < 2*hashSize {
		return nil, nil, ErrBlockTooShort
	}
	return buf[:hashSize], buf[hashSize:], nil
}

// streamRound XORs r in place with a ChaCha20 keystream under key XOR l.
func streamRound(l, r []byte, key [hashSize]byte) error {
	var roundKey [hashSize]byte
	for i := range roundKey {
		roundKey[i] = key[i] ^ l[i]
	}
	// 96-bit zero nonce: safe because every round key is single-use,
	// derived fresh from the per-hop payload key and the current half.
	nonce := make([]byte, chacha20.NonceSize)
	stream, err := chacha20.NewUnauthenticatedCipher(roundKey[:], nonce)
	if err != nil {
		return fmt.Errorf("lioness: new chacha20 cipher: %w", err)
	}
	stream.XORKeyStream(r, r)
	return nil
}

// hashRound XORs l in place with the keyed Blake2b-256 digest of r.
func hashRound(l, r []byte, key [hashSize]byte) {
	h, err := blake2b.New256(key[:])
	if err != nil {
		// blake2b.New256 only errors for keys longer than 64 bytes; our
		// key is fixed at hashSize (32) bytes, so this is unreachable.
		panic(fmt.Sprintf("lioness: keyed blake2b init: %v", err))
	}
	h.Write(r)
	digest := h.Sum(nil)
	for i := range l {
		l[i] ^= digest[i]
	}
}
