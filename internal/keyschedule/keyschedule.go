// Package keyschedule derives the per-hop routing keys from a
// Diffie-Hellman shared group element, the way spec.md §4.2 requires:
// byte-identical output on sender and relay for the same shared secret.
package keyschedule

import (
	"fmt"

	"github.com/sphinxmix/onion/internal/lioness"
	"github.com/sphinxmix/onion/internal/xcrypto"
)

// Domain-separation tags, frozen so sender and relay never drift apart.
// Extends the teacher's own rho/mu naming with a tag per additional key.
var (
	tagStreamCipherKey = []byte("rho")
	tagHeaderMACKey    = []byte("mu")
	infoPayloadKey     = []byte("pi")
	infoBlindingFactor = []byte("blind")
)

// RoutingKeys is the set of keys a single hop's shared secret expands
// into. Every field here is secret-scoped: call Zero once the keys are no
// longer needed, on every exit path including errors.
type RoutingKeys struct {
	StreamCipherKey [xcrypto.StreamCipherKeySize]byte
	HeaderMACKey    []byte
	PayloadKey      []byte
	BlindingFactor  xcrypto.Scalar
}

// Zero overwrites every secret field of ks.
func (ks *RoutingKeys) Zero() {
	clear(ks.StreamCipherKey[:])
	clear(ks.HeaderMACKey)
	clear(ks.PayloadKey)
	ks.BlindingFactor.Zero()
}

// Derive expands sharedSecret into a RoutingKeys. sharedSecret must be the
// Montgomery group element produced by ECDH between the sender's running
// scalar and this hop's public key (build side), or between this hop's
// identity scalar and the packet's alpha (unwrap side) — both sides MUST
// reach byte-identical output for the scheme to work.
//
// The StreamCipherKey is used with the fixed all-zero IV
// (xcrypto.StreamCipherIV). That is safe only while each shared secret, and
// so each StreamCipherKey, belongs to a single packet hop; deriving the same
// key for two packets would reuse an AES-CTR keystream.
func Derive(sharedSecret xcrypto.GroupElement) (RoutingKeys, error) {
	streamKeyWide := xcrypto.Expand(tagStreamCipherKey, sharedSecret[:])
	headerMACKey := xcrypto.Expand(tagHeaderMACKey, sharedSecret[:])

	payloadKey, err := xcrypto.ExpandHKDF(sharedSecret[:], infoPayloadKey, lioness.RawKeySize)
	if err != nil {
		return RoutingKeys{}, fmt.Errorf("keyschedule: derive payload key: %w", err)
	}

	blindSeed, err := xcrypto.ExpandHKDF(sharedSecret[:], infoBlindingFactor, 64)
	if err != nil {
		return RoutingKeys{}, fmt.Errorf("keyschedule: derive blinding seed: %w", err)
	}
	blinder, err := xcrypto.ScalarFromWideBytes(blindSeed)
	clear(blindSeed)
	if err != nil {
		return RoutingKeys{}, fmt.Errorf("keyschedule: reduce blinding factor: %w", err)
	}

	var ks RoutingKeys
	copy(ks.StreamCipherKey[:], streamKeyWide[:xcrypto.StreamCipherKeySize])
	clear(streamKeyWide)
	ks.HeaderMACKey = headerMACKey
	ks.PayloadKey = payloadKey
	ks.BlindingFactor = blinder
	return ks, nil
}
